package internal

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"roomchat/internal/protocol"
	"roomchat/internal/render"
	"roomchat/internal/session"
	"roomchat/internal/upload"
)

// messages fed back into Update
type (
	connectedMsg     struct{ conn SocketConn }
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
	disconnectedMsg  struct {
		conn SocketConn
		err  error
	}
	socketEventMsg struct {
		conn     SocketConn
		envelope protocol.Envelope
	}
	uploadDoneMsg struct {
		path     string
		response upload.Response
		err      error
	}
)

var errConnectionClosed = errors.New("connection closed by server")

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.WindowSizeMsg:
		model.resize(typedMessage.Width, typedMessage.Height)
		var cmd tea.Cmd
		model.filepicker, cmd = model.filepicker.Update(typedMessage)
		return model, cmd

	case tea.KeyMsg:
		// Ctrl+C quits from anywhere, alert included.
		if typedMessage.Type == tea.KeyCtrlC {
			return model, model.quit()
		}
		switch model.mode {
		case modeAlert:
			return model.updateAlert(typedMessage)
		case modePicker:
			return model.updatePicker(typedMessage)
		case modeRoster:
			return model.updateRoster(typedMessage)
		default:
			return model.updateChat(typedMessage)
		}

	case connectedMsg:
		if model.quitting {
			_ = typedMessage.conn.Close()
			return model, nil
		}
		if model.everConnected {
			model.metrics.IncReconnect()
		}
		model.conn = typedMessage.conn
		model.everConnected = true
		model.isConnected = true
		model.connectionError = nil
		model.logger.Info().Str("room", model.CurrentRoom()).Msg("connected")
		if err := model.session.Join(); err != nil {
			model.logger.Warn().Err(err).Msg("join failed")
		}
		return model, listenCmd(typedMessage.conn)

	case connectFailedMsg:
		model.connectionError = typedMessage.err
		model.logger.Warn().Err(typedMessage.err).Msg("connect failed")
		if model.quitting {
			return model, nil
		}
		return model, model.scheduleReconnect()

	case disconnectedMsg:
		// a late close from a connection we already replaced
		if typedMessage.conn != model.conn {
			return model, nil
		}
		err := typedMessage.err
		if err == nil {
			err = errConnectionClosed
		}
		model.conn = nil
		model.isConnected = false
		model.connectionError = err
		model.logger.Warn().Err(err).Msg("disconnected")
		if model.quitting {
			return model, nil
		}
		return model, model.scheduleReconnect()

	case reconnectMsg:
		if !model.quitting && model.conn == nil {
			return model, model.connectCmd()
		}
		return model, nil

	case socketEventMsg:
		if typedMessage.conn != model.conn {
			return model, nil
		}
		model.handleEvent(typedMessage.envelope)
		return model, listenCmd(typedMessage.conn)

	case uploadDoneMsg:
		model.finishUpload(typedMessage.path)
		model.handleUploadResult(typedMessage)
		return model, nil
	}

	// directory listings and other picker internals
	var cmd tea.Cmd
	model.filepicker, cmd = model.filepicker.Update(message)
	return model, cmd
}

func (model *TUIModel) updateChat(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		return model, model.submitInput()
	case tea.KeyCtrlO:
		model.switchRoom(session.CommonRoom)
		return model, nil
	case tea.KeyCtrlF:
		return model, model.openPicker()
	case tea.KeyTab:
		model.mode = modeRoster
		model.textInput.Blur()
		model.clampSelection()
		return model, nil
	case tea.KeyPgUp:
		model.viewport.ViewUp()
		return model, nil
	case tea.KeyPgDown:
		model.viewport.ViewDown()
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

// submitInput sends the typed line. Blank input is ignored and left in place.
func (model *TUIModel) submitInput() tea.Cmd {
	trimmed := strings.TrimSpace(model.textInput.Value())
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "/") {
		if cmd, ok := model.runCommand(trimmed); ok {
			model.textInput.SetValue("")
			return cmd
		}
	}
	payload := protocol.TextPayload{Msg: trimmed, Room: model.CurrentRoom()}
	if err := model.Emit(protocol.EventText, payload); err != nil {
		model.logger.Warn().Err(err).Msg("send failed")
		model.connectionError = err
		return nil
	}
	model.textInput.SetValue("")
	return nil
}

func (model *TUIModel) updateRoster(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab, tea.KeyEsc:
		return model, model.backToChat()
	case tea.KeyUp:
		if model.selectedUser > 0 {
			model.selectedUser--
		}
	case tea.KeyDown:
		if model.selectedUser < model.roster.Len()-1 {
			model.selectedUser++
		}
	case tea.KeyEnter:
		if model.roster.Len() == 0 {
			return model, nil
		}
		if err := model.roster.StartPrivate(model, model.selectedUser); err != nil {
			model.logger.Warn().Err(err).Msg("private chat request failed")
			model.appendBlock(render.Notice(err.Error()))
		}
		return model, model.backToChat()
	}
	return model, nil
}

func (model *TUIModel) updatePicker(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEsc {
		model.resetPicker()
		return model, model.textInput.Focus()
	}
	var cmd tea.Cmd
	model.filepicker, cmd = model.filepicker.Update(key)
	if selected, path := model.filepicker.DidSelectFile(key); selected {
		uploadCmd := model.startUpload(path)
		model.resetPicker()
		return model, tea.Batch(uploadCmd, model.textInput.Focus())
	}
	return model, cmd
}

// updateAlert blocks all input until the alert is acknowledged.
func (model *TUIModel) updateAlert(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter, tea.KeyEsc:
		model.alerts = model.alerts[1:]
		if len(model.alerts) > 0 {
			return model, nil
		}
		return model, model.backToChat()
	}
	return model, nil
}

func (model *TUIModel) backToChat() tea.Cmd {
	model.mode = modeChat
	return model.textInput.Focus()
}

// handleEvent applies one inbound socket event. Payload shapes are trusted;
// anything that does not bind is logged and dropped.
func (model *TUIModel) handleEvent(envelope protocol.Envelope) {
	logger := model.logger.With().Str("event", string(envelope.Event)).Logger()
	switch envelope.Event {
	case protocol.EventOnlineUsers:
		var users protocol.OnlineUsersPayload
		if err := envelope.Bind(&users); err != nil {
			logger.Debug().Err(err).Msg("dropping event")
			return
		}
		model.roster.Update(users)
		model.clampSelection()

	case protocol.EventMessage:
		var payload protocol.MessagePayload
		if err := envelope.Bind(&payload); err != nil {
			logger.Debug().Err(err).Msg("dropping event")
			return
		}
		model.metrics.IncMessage()
		model.appendBlock(model.renderer.Message(payload))

	case protocol.EventPrivateStarted:
		var payload protocol.RoomPayload
		if err := envelope.Bind(&payload); err != nil {
			logger.Debug().Err(err).Msg("dropping event")
			return
		}
		model.switchRoom(payload.Room)

	case protocol.EventInitiatePrivate:
		var payload protocol.InitiatePrivatePayload
		if err := envelope.Bind(&payload); err != nil {
			logger.Debug().Err(err).Msg("dropping event")
			return
		}
		model.switchRoom(payload.Room)
		model.appendBlock(render.Notice(payload.Sender + " has started a private chat with you."))

	default:
		logger.Debug().Msg("ignoring unknown event")
	}
}

func (model *TUIModel) handleUploadResult(result uploadDoneMsg) {
	if result.err != nil {
		model.metrics.IncUploadError()
		if text := model.onFailure(result.err); text != "" {
			model.showAlert(text)
		}
		return
	}
	if result.response.Rejected() {
		model.metrics.IncUploadError()
		model.showAlert(result.response.Error)
	}
}

func (model *TUIModel) clampSelection() {
	switch {
	case model.roster.Len() == 0:
		model.selectedUser = 0
	case model.selectedUser >= model.roster.Len():
		model.selectedUser = model.roster.Len() - 1
	}
}
