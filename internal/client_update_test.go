package internal

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/chattest"
	"roomchat/internal/protocol"
	"roomchat/internal/render"
	"roomchat/internal/upload"
)

type emitted struct {
	event   protocol.Event
	payload any
}

// fakeConn stands in for a websocket and records every emit.
type fakeConn struct {
	emits    []emitted
	events   chan protocol.Envelope
	emitErr  error
	closed   bool
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan protocol.Envelope, 8)}
}

func (f *fakeConn) Emit(event protocol.Event, payload any) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeConn) Events() <-chan protocol.Envelope { return f.events }
func (f *fakeConn) Err() error                       { return f.closeErr }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) reset() {
	f.emits = nil
}

func newTestModel(t *testing.T, configure func(*ClientOptions)) (*TUIModel, *fakeConn) {
	t.Helper()
	opts := ClientOptions{
		Username:  "alice",
		BrowseDir: t.TempDir(),
		OpenURL:   func(string) error { return nil },
		Logger:    zerolog.Nop(),
	}
	if configure != nil {
		configure(&opts)
	}
	model := NewTUIModel(context.Background(), opts)
	conn := newFakeConn()
	send(model, connectedMsg{conn: conn})
	return model, conn
}

func send(model *TUIModel, msg tea.Msg) tea.Cmd {
	_, cmd := model.Update(msg)
	return cmd
}

func event(t *testing.T, conn SocketConn, name protocol.Event, payload any) socketEventMsg {
	t.Helper()
	frame, err := protocol.Encode(name, payload)
	require.NoError(t, err)
	envelope, err := protocol.Decode(frame)
	require.NoError(t, err)
	return socketEventMsg{conn: conn, envelope: envelope}
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func typeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestConnectJoinsCurrentRoom(t *testing.T) {
	model, conn := newTestModel(t, func(opts *ClientOptions) { opts.Room = "lobby" })

	assert.True(t, model.isConnected)
	assert.Equal(t, "Lobby Chat Room", model.roomLabel)
	assert.Equal(t, []emitted{{protocol.EventJoin, protocol.RoomPayload{Room: "lobby"}}}, conn.emits)
}

func TestSubmitEmitsTrimmedTextAndClearsInput(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.reset()

	model.textInput.SetValue("  hello there  ")
	send(model, enter())

	assert.Equal(t, []emitted{{protocol.EventText, protocol.TextPayload{Msg: "hello there", Room: "common"}}}, conn.emits)
	assert.Empty(t, model.textInput.Value())
}

func TestBlankInputIsIgnored(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.reset()

	model.textInput.SetValue("   ")
	send(model, enter())

	assert.Empty(t, conn.emits)
	assert.Equal(t, "   ", model.textInput.Value())
}

func TestSendWhileDisconnectedKeepsInput(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.emitErr = errors.New("socket closed")

	model.textInput.SetValue("hello")
	send(model, enter())

	assert.Equal(t, "hello", model.textInput.Value())
	assert.Error(t, model.connectionError)
}

func TestPrivateStartedSwitchesRoomInOrder(t *testing.T) {
	model, conn := newTestModel(t, nil)
	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "hi"}))
	require.Len(t, model.blocks, 1)
	conn.reset()

	cmd := send(model, event(t, conn, protocol.EventPrivateStarted, protocol.RoomPayload{Room: "private_alice_bob"}))

	assert.NotNil(t, cmd, "listener must be re-armed")
	assert.Equal(t, []emitted{
		{protocol.EventLeave, protocol.RoomPayload{Room: "common"}},
		{protocol.EventJoin, protocol.RoomPayload{Room: "private_alice_bob"}},
	}, conn.emits)
	assert.Equal(t, "private_alice_bob", model.CurrentRoom())
	assert.Equal(t, "Private Chat: alice & bob", model.roomLabel)
	assert.Empty(t, model.blocks)
}

func TestCommonRoomKeyReturnsToCommon(t *testing.T) {
	model, conn := newTestModel(t, func(opts *ClientOptions) { opts.Room = "private_alice_bob" })
	conn.reset()

	send(model, tea.KeyMsg{Type: tea.KeyCtrlO})

	assert.Equal(t, []emitted{
		{protocol.EventLeave, protocol.RoomPayload{Room: "private_alice_bob"}},
		{protocol.EventJoin, protocol.RoomPayload{Room: "common"}},
	}, conn.emits)
	assert.Equal(t, "Common Chat Room", model.roomLabel)
}

func TestCommonCommand(t *testing.T) {
	model, conn := newTestModel(t, func(opts *ClientOptions) { opts.Room = "private_alice_bob" })
	conn.reset()

	model.textInput.SetValue("/common")
	send(model, enter())

	require.Len(t, conn.emits, 2)
	assert.Equal(t, protocol.EventJoin, conn.emits[1].event)
	assert.Equal(t, "common", model.CurrentRoom())
	assert.Empty(t, model.textInput.Value())
}

func TestInitiatePrivateShowsNoticeAfterClearing(t *testing.T) {
	model, conn := newTestModel(t, nil)
	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "old"}))
	conn.reset()

	send(model, event(t, conn, protocol.EventInitiatePrivate, protocol.InitiatePrivatePayload{Room: "private_bob_alice", Sender: "bob"}))

	assert.Equal(t, "private_bob_alice", model.CurrentRoom())
	require.Len(t, conn.emits, 2)
	assert.Equal(t, protocol.EventLeave, conn.emits[0].event)
	assert.Equal(t, protocol.EventJoin, conn.emits[1].event)
	assert.Equal(t, []render.Block{render.Notice("bob has started a private chat with you.")}, model.blocks)
}

func TestMessageEventAppendsRenderedBlock(t *testing.T) {
	model, conn := newTestModel(t, nil)

	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "<b>look</b>", FileURL: "/static/uploads/cat.png"}))

	require.Len(t, model.blocks, 1)
	block := model.blocks[0]
	assert.Equal(t, "<b>look</b>", block.Body)
	require.NotNil(t, block.Attachment)
	assert.Equal(t, render.AttachmentImage, block.Attachment.Kind)
	assert.Equal(t, "/static/uploads/cat.png", model.lastAttachment)
}

func TestStripMarkupOption(t *testing.T) {
	model, conn := newTestModel(t, func(opts *ClientOptions) { opts.BodyFilter = render.StripMarkup() })

	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "<b>look</b>"}))

	require.Len(t, model.blocks, 1)
	assert.Equal(t, "look", model.blocks[0].Body)
}

func TestMalformedAndUnknownEventsAreDropped(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.reset()

	send(model, socketEventMsg{conn: conn, envelope: protocol.Envelope{Event: protocol.EventMessage}})
	send(model, event(t, conn, protocol.Event("typing"), map[string]string{"user": "bob"}))

	assert.Empty(t, model.blocks)
	assert.Empty(t, conn.emits)
}

func TestOnlineUsersAndPrivateChatFromRoster(t *testing.T) {
	model, conn := newTestModel(t, nil)
	send(model, event(t, conn, protocol.EventOnlineUsers, protocol.OnlineUsersPayload{"alice", "bob", "carol"}))
	assert.Equal(t, []string{"bob", "carol"}, model.roster.Users())
	conn.reset()

	send(model, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, modeRoster, model.mode)
	send(model, tea.KeyMsg{Type: tea.KeyDown})
	send(model, tea.KeyMsg{Type: tea.KeyDown})
	send(model, enter())

	assert.Equal(t, []emitted{{protocol.EventStartPrivate, protocol.StartPrivatePayload{Target: "carol"}}}, conn.emits)
	assert.Equal(t, modeChat, model.mode)
	assert.Equal(t, "common", model.CurrentRoom(), "room changes only when the server confirms")
}

func TestRosterSelectionClampedOnShrink(t *testing.T) {
	model, conn := newTestModel(t, nil)
	send(model, event(t, conn, protocol.EventOnlineUsers, protocol.OnlineUsersPayload{"bob", "carol", "dave"}))
	model.selectedUser = 2

	send(model, event(t, conn, protocol.EventOnlineUsers, protocol.OnlineUsersPayload{"alice", "bob"}))

	assert.Equal(t, 0, model.selectedUser)
}

func TestPrivateCommand(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.reset()

	model.textInput.SetValue("/private bob")
	send(model, enter())

	assert.Equal(t, []emitted{{protocol.EventStartPrivate, protocol.StartPrivatePayload{Target: "bob"}}}, conn.emits)
}

func TestUploadRejectedShowsBlockingAlert(t *testing.T) {
	model, conn := newTestModel(t, nil)
	conn.reset()

	send(model, uploadDoneMsg{path: "big.bin", response: upload.Response{Status: http.StatusRequestEntityTooLarge, Error: "too large"}})
	require.Equal(t, modeAlert, model.mode)
	assert.Equal(t, []string{"too large"}, model.alerts)

	// typing does nothing until the alert is dismissed
	send(model, typeKey('x'))
	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "meanwhile"}))
	assert.Equal(t, modeAlert, model.mode)
	assert.Empty(t, model.textInput.Value())

	send(model, enter())
	assert.Equal(t, modeChat, model.mode)
	assert.Empty(t, model.alerts)
}

func TestAlertsQueueInOrder(t *testing.T) {
	model, _ := newTestModel(t, nil)

	send(model, uploadDoneMsg{path: "a.bin", response: upload.Response{Error: "first"}})
	send(model, uploadDoneMsg{path: "b.bin", response: upload.Response{Error: "second"}})
	assert.Equal(t, []string{"first", "second"}, model.alerts)

	send(model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeAlert, model.mode)
	assert.Equal(t, []string{"second"}, model.alerts)

	send(model, enter())
	assert.Equal(t, modeChat, model.mode)
	assert.Equal(t, uint64(2), model.metrics.uploadErrors.Load())
}

func TestUploadAcceptedShowsNothing(t *testing.T) {
	model, _ := newTestModel(t, nil)

	send(model, uploadDoneMsg{path: "a.txt", response: upload.Response{Status: http.StatusOK}})

	assert.Equal(t, modeChat, model.mode)
	assert.Empty(t, model.alerts)
}

func TestUploadFailurePolicies(t *testing.T) {
	failure := uploadDoneMsg{path: "a.txt", err: errors.New("connection refused")}

	model, _ := newTestModel(t, nil)
	send(model, failure)
	assert.Equal(t, modeChat, model.mode, "default policy only logs")

	model, _ = newTestModel(t, func(opts *ClientOptions) { opts.FailurePolicy = upload.AlertFailures(zerolog.Nop()) })
	send(model, failure)
	assert.Equal(t, modeAlert, model.mode)
	assert.Equal(t, []string{"Upload failed: connection refused"}, model.alerts)
}

func TestUploadCommandPostsToCurrentRoom(t *testing.T) {
	server := chattest.NewServer(t)
	server.ReplyToUploads(http.StatusOK, `{"file_url":"/static/uploads/notes.txt"}`)
	dispatcher := upload.NewDispatcher(server.UploadURL(), server.Client(), zerolog.Nop())
	model, _ := newTestModel(t, func(opts *ClientOptions) {
		opts.Room = "private_alice_bob"
		opts.Dispatcher = dispatcher
	})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	model.textInput.SetValue("/upload " + path)
	cmd := send(model, enter())
	require.NotNil(t, cmd)
	assert.Equal(t, "notes.txt (5 B)", model.uploadingLabel())

	result := cmd()
	got := server.NextUpload(t)
	assert.Equal(t, "private_alice_bob", got.Room)
	assert.Equal(t, []byte("hello"), got.Content)

	send(model, result)
	assert.Empty(t, model.uploadingLabel())
	assert.Equal(t, modeChat, model.mode)
}

func TestPickerOpensAndCancels(t *testing.T) {
	model, _ := newTestModel(t, nil)

	cmd := send(model, tea.KeyMsg{Type: tea.KeyCtrlF})
	assert.NotNil(t, cmd)
	assert.Equal(t, modePicker, model.mode)

	send(model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeChat, model.mode)
}

func TestPickerSelectionStartsUploadAndResets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o600))
	model, _ := newTestModel(t, func(opts *ClientOptions) { opts.BrowseDir = dir })

	// picking the same file twice shows the picker starts clean after each upload
	for round := 1; round <= 2; round++ {
		readDir := send(model, tea.KeyMsg{Type: tea.KeyCtrlF})
		require.NotNil(t, readDir)
		require.Equal(t, modePicker, model.mode)
		send(model, readDir())

		cmd := send(model, enter())
		assert.NotNil(t, cmd, "round %d", round)
		assert.Equal(t, modeChat, model.mode, "round %d", round)
		assert.Equal(t, dir, model.browseDir)
		assert.Len(t, model.uploads, round)
	}
	assert.Equal(t, "a.txt (1 B) (+1 more)", model.uploadingLabel())
}

func TestOverlappingUploadsKeepStatus(t *testing.T) {
	model, _ := newTestModel(t, nil)
	first := filepath.Join(t.TempDir(), "first.bin")
	second := filepath.Join(t.TempDir(), "second.bin")

	model.startUpload(first)
	model.startUpload(second)
	assert.Equal(t, "second.bin (+1 more)", model.uploadingLabel())

	send(model, uploadDoneMsg{path: first, response: upload.Response{Status: http.StatusOK}})
	assert.Equal(t, "second.bin", model.uploadingLabel())

	send(model, uploadDoneMsg{path: second, response: upload.Response{Status: http.StatusOK}})
	assert.Empty(t, model.uploadingLabel())
}

func TestAlertClosesOpenPicker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o700))
	model, _ := newTestModel(t, func(opts *ClientOptions) { opts.BrowseDir = dir })

	readDir := send(model, tea.KeyMsg{Type: tea.KeyCtrlF})
	require.NotNil(t, readDir)
	send(model, readDir())
	// enter the only entry, the docs directory
	send(model, enter())
	require.Equal(t, modePicker, model.mode)

	send(model, uploadDoneMsg{path: "big.bin", response: upload.Response{Error: "too large"}})
	assert.Equal(t, modeAlert, model.mode)
	assert.Equal(t, filepath.Join(dir, "docs"), model.browseDir)

	send(model, enter())
	assert.Equal(t, modeChat, model.mode)
	assert.True(t, model.textInput.Focused())
}

func TestDisconnectReconnectsAndRejoins(t *testing.T) {
	model, conn := newTestModel(t, func(opts *ClientOptions) { opts.Room = "lobby" })

	cmd := send(model, disconnectedMsg{conn: conn, err: errors.New("connection reset")})
	assert.NotNil(t, cmd)
	assert.False(t, model.isConnected)
	assert.Nil(t, model.conn)
	assert.ErrorIs(t, model.Emit(protocol.EventText, protocol.TextPayload{}), errNotConnected)

	// events from the dead connection are ignored
	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "late"}))
	assert.Empty(t, model.blocks)

	next := newFakeConn()
	send(model, connectedMsg{conn: next})
	assert.Equal(t, []emitted{{protocol.EventJoin, protocol.RoomPayload{Room: "lobby"}}}, next.emits)
	assert.Nil(t, model.connectionError)
	assert.Equal(t, uint64(1), model.metrics.reconnects.Load())
}

func TestQuitClosesConnection(t *testing.T) {
	model, conn := newTestModel(t, nil)

	model.textInput.SetValue("/quit")
	cmd := send(model, enter())

	require.NotNil(t, cmd)
	assert.True(t, conn.closed)
	assert.True(t, model.quitting)
	assert.Nil(t, send(model, reconnectMsg{}))
}

func TestOpenCommandResolvesLastAttachment(t *testing.T) {
	var opened []string
	model, conn := newTestModel(t, func(opts *ClientOptions) {
		opts.AttachmentBase = "http://chat.local:5000"
		opts.OpenURL = func(url string) error {
			opened = append(opened, url)
			return nil
		}
	})

	model.textInput.SetValue("/open")
	send(model, enter())
	assert.Empty(t, opened)
	require.Len(t, model.blocks, 1)
	assert.Equal(t, render.BlockNotice, model.blocks[0].Kind)

	send(model, event(t, conn, protocol.EventMessage, protocol.MessagePayload{Msg: "report", FileURL: "/static/uploads/report.pdf"}))
	model.textInput.SetValue("/open")
	send(model, enter())
	assert.Equal(t, []string{"http://chat.local:5000/static/uploads/report.pdf"}, opened)
}

func TestResolveAttachmentURL(t *testing.T) {
	cases := []struct {
		base string
		raw  string
		want string
	}{
		{"http://chat.local", "/static/a.png", "http://chat.local/static/a.png"},
		{"http://chat.local", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"", "/static/a.png", "/static/a.png"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resolveAttachmentURL(tc.base, tc.raw), tc.raw)
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KB",
		1536:    "1.5 KB",
		5 << 20: "5.0 MB",
		3 << 30: "3.0 GB",
	}
	for size, want := range cases {
		assert.Equal(t, want, formatFileSize(size))
	}
}
