package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"roomchat/internal/presence"
	"roomchat/internal/render"
	"roomchat/internal/session"
)

const retryDelay = 2 * time.Second

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	// we schedule a future poke that nudges Update to try the connection again.
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// websocket dial
func (model *TUIModel) connectCmd() tea.Cmd {
	dial := model.dial
	ctx := model.ctx
	return func() tea.Msg {
		if dial == nil {
			return connectFailedMsg{err: errNotConnected}
		}
		conn, err := dial(ctx)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

// listenCmd waits for one inbound event. Update re-arms it after every event,
// so events are handled one at a time in arrival order.
func listenCmd(conn SocketConn) tea.Cmd {
	return func() tea.Msg {
		envelope, ok := <-conn.Events()
		if !ok {
			return disconnectedMsg{conn: conn, err: conn.Err()}
		}
		return socketEventMsg{conn: conn, envelope: envelope}
	}
}

// uploadCmd posts path to room in the background. The room is fixed when the
// file is picked; a later room switch does not redirect it.
func (model *TUIModel) uploadCmd(path, room string) tea.Cmd {
	dispatcher := model.dispatcher
	ctx := model.ctx
	return func() tea.Msg {
		if dispatcher == nil {
			return uploadDoneMsg{path: path, err: errNoUploadEndpoint}
		}
		response, err := dispatcher.UploadPath(ctx, path, room)
		return uploadDoneMsg{path: path, response: response, err: err}
	}
}

// runCommand handles a slash command typed into the input. It reports false
// for input that is not a known command.
func (model *TUIModel) runCommand(line string) (tea.Cmd, bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/quit", "/exit":
		return model.quit(), true
	case "/common":
		model.switchRoom(session.CommonRoom)
		return nil, true
	case "/private":
		if arg == "" {
			model.appendBlock(render.Notice("Usage: /private <name>"))
			return nil, true
		}
		if err := presence.RequestPrivate(model, arg); err != nil {
			model.logger.Warn().Err(err).Msg("private chat request failed")
			model.appendBlock(render.Notice(err.Error()))
		}
		return nil, true
	case "/upload":
		if arg == "" {
			return model.openPicker(), true
		}
		return model.startUpload(expandHome(arg)), true
	case "/open":
		model.openAttachment()
		return nil, true
	case "/help":
		model.appendBlock(render.Notice(helpText))
		return nil, true
	}
	return nil, false
}

// startUpload dispatches path to the current room.
func (model *TUIModel) startUpload(path string) tea.Cmd {
	label := filepath.Base(path)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		label += " (" + formatFileSize(info.Size()) + ")"
	}
	model.uploads = append(model.uploads, pendingUpload{path: path, label: label})
	model.metrics.IncUpload()
	return model.uploadCmd(path, model.CurrentRoom())
}

// pendingUpload is one upload still waiting for its reply.
type pendingUpload struct {
	path  string
	label string
}

// finishUpload forgets the oldest in-flight upload of path.
func (model *TUIModel) finishUpload(path string) {
	for idx, pending := range model.uploads {
		if pending.path == path {
			model.uploads = append(model.uploads[:idx], model.uploads[idx+1:]...)
			return
		}
	}
}

// uploadingLabel names the newest in-flight upload for the status line.
func (model *TUIModel) uploadingLabel() string {
	if len(model.uploads) == 0 {
		return ""
	}
	label := model.uploads[len(model.uploads)-1].label
	if more := len(model.uploads) - 1; more > 0 {
		label += fmt.Sprintf(" (+%d more)", more)
	}
	return label
}

func (model *TUIModel) openPicker() tea.Cmd {
	model.filepicker = newFilePicker(model.browseDir)
	model.mode = modePicker
	model.textInput.Blur()
	return model.filepicker.Init()
}

// resetPicker drops the picker state so the next open starts clean.
func (model *TUIModel) resetPicker() {
	model.browseDir = model.filepicker.CurrentDirectory
	model.filepicker = newFilePicker(model.browseDir)
	model.mode = modeChat
}

func (model *TUIModel) switchRoom(target string) {
	err := model.session.SwitchRoom(target)
	if errors.Is(err, session.ErrEmptyRoom) {
		model.logger.Debug().Msg("ignoring switch to empty room")
		return
	}
	if err != nil {
		model.logger.Warn().Err(err).Str("room", target).Msg("room switch emitted with errors")
	}
	model.metrics.IncRoomSwitch()
	model.logger.Info().Str("room", target).Msg("switched room")
}

// openAttachment opens the most recent attachment in the system browser.
func (model *TUIModel) openAttachment() {
	if model.lastAttachment == "" {
		model.appendBlock(render.Notice("No attachment to open yet."))
		return
	}
	target := resolveAttachmentURL(model.attachmentBase, model.lastAttachment)
	if err := model.openURL(target); err != nil {
		model.logger.Warn().Err(err).Str("url", target).Msg("open attachment failed")
		model.appendBlock(render.Notice("Could not open " + target))
	}
}

// resolveAttachmentURL makes server-relative URLs such as
// /static/uploads/a.png absolute against base.
func resolveAttachmentURL(base, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() || base == "" {
		return raw
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}

func (model *TUIModel) quit() tea.Cmd {
	model.quitting = true
	if model.conn != nil {
		_ = model.conn.Close()
		model.conn = nil
	}
	return tea.Quit
}

// RunClient starts the terminal UI and blocks until the user quits.
func RunClient(ctx context.Context, opts ClientOptions) error {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	// the browser launcher must not write over the alt screen
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	program := tea.NewProgram(NewTUIModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	opts.Logger.Info().Object("session", opts.Metrics).Msg("client stopped")
	return err
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

const helpText = `/common            back to the common room (Ctrl+O)
/private <name>    start a private chat
/upload [path]     send a file; no path opens the picker (Ctrl+F)
/open              open the latest attachment in the browser
/quit              leave
Tab                pick an online user, Enter to chat privately`
