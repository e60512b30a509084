package internal

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"roomchat/internal/presence"
	"roomchat/internal/protocol"
	"roomchat/internal/render"
	"roomchat/internal/session"
	"roomchat/internal/upload"
)

var (
	errNotConnected     = errors.New("not connected to chat server")
	errNoUploadEndpoint = errors.New("no upload endpoint configured")
)

// SocketConn is the live connection the model talks through.
// *socket.Conn satisfies it.
type SocketConn interface {
	Emit(event protocol.Event, payload any) error
	Events() <-chan protocol.Envelope
	Err() error
	Close() error
}

// DialFunc opens a new connection to the chat server.
type DialFunc func(ctx context.Context) (SocketConn, error)

// ClientOptions is everything the TUI needs from the outside world.
// AttachmentBase resolves relative attachment URLs for /open.
type ClientOptions struct {
	Username       string
	Room           string
	ServerURL      string
	Dial           DialFunc
	Dispatcher     *upload.Dispatcher
	FailurePolicy  upload.FailurePolicy
	BodyFilter     render.BodyFilter
	BrowseDir      string
	AttachmentBase string
	OpenURL        func(url string) error
	Metrics        *Metrics
	Logger         zerolog.Logger
}

// tui model struct for all the components and modes
type TUIModel struct {
	ctx        context.Context
	textInput  textinput.Model
	viewport   viewport.Model
	filepicker filepicker.Model
	browseDir  string

	session    *session.Controller
	roster     *presence.Roster
	renderer   *render.Renderer
	dispatcher *upload.Dispatcher
	onFailure  upload.FailurePolicy

	blocks         []render.Block
	roomLabel      string
	username       string
	serverURL      string
	attachmentBase string
	lastAttachment string
	openURL        func(string) error
	metrics        *Metrics

	dial            DialFunc
	conn            SocketConn
	isConnected     bool
	everConnected   bool
	connectionError error
	quitting        bool

	mode         appMode
	alerts       []string
	selectedUser int
	uploads      []pendingUpload

	width  int
	height int
	logger zerolog.Logger
}

type appMode int

const (
	modeChat appMode = iota
	modeRoster
	modePicker
	modeAlert
)

func NewTUIModel(ctx context.Context, opts ClientOptions) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	room := opts.Room
	if room == "" {
		room = session.CommonRoom
	}
	onFailure := opts.FailurePolicy
	if onFailure == nil {
		onFailure = upload.LogFailures(opts.Logger)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	openURL := opts.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}
	browseDir := opts.BrowseDir
	if browseDir == "" {
		browseDir = defaultBrowsePath()
	}

	model := &TUIModel{
		ctx:        ctx,
		textInput:  input,
		viewport:   viewport.New(80, 20),
		filepicker: newFilePicker(browseDir),
		browseDir:  browseDir,
		roster:     presence.NewRoster(opts.Username),
		renderer:   render.NewRenderer(opts.BodyFilter),
		dispatcher: opts.Dispatcher,
		onFailure:  onFailure,
		blocks:     make([]render.Block, 0, 64),
		username:   opts.Username,
		serverURL:  opts.ServerURL,
		dial:       opts.Dial,
		metrics:    metrics,
		openURL:    openURL,
		logger:     opts.Logger.With().Str("component", "tui").Logger(),

		attachmentBase: opts.AttachmentBase,
	}
	model.session = session.NewController(room, model, model)
	model.refreshViewport()
	return model
}

func (model *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, model.connectCmd())
}

// Emit sends through the current connection. The session controller and the
// roster both emit through the model so a reconnect swaps the socket under them.
func (model *TUIModel) Emit(event protocol.Event, payload any) error {
	if model.conn == nil {
		return errNotConnected
	}
	return model.conn.Emit(event, payload)
}

func (model *TUIModel) SetRoomLabel(label string) {
	model.roomLabel = label
}

func (model *TUIModel) ClearMessages() {
	model.blocks = model.blocks[:0]
	model.lastAttachment = ""
	model.refreshViewport()
}

// CurrentRoom is the room messages and uploads are sent to.
func (model *TUIModel) CurrentRoom() string {
	return model.session.CurrentRoom()
}

func (model *TUIModel) appendBlock(block render.Block) {
	if block.Attachment != nil {
		model.lastAttachment = block.Attachment.URL
	}
	model.blocks = append(model.blocks, block)
	model.refreshViewport()
	model.viewport.GotoBottom()
}

// showAlert queues text. An open picker is closed so the alert owns the input.
func (model *TUIModel) showAlert(text string) {
	model.alerts = append(model.alerts, text)
	if model.mode == modePicker {
		model.resetPicker()
	}
	if model.mode != modeAlert {
		model.mode = modeAlert
		model.textInput.Blur()
	}
}
