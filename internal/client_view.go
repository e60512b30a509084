package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roomchat/internal/render"
)

// pre styled colors// all from lipgloss
var (
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109"))
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	imageStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	videoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	linkStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Underline(true)
	rosterBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	rosterFocusStyle   = rosterBoxStyle.Copy().BorderForeground(lipgloss.Color("213"))
	rosterTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))
	userSelectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	userItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	menuHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	alertBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("196")).Padding(1, 3)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
)

const (
	rosterWidth  = 22
	chromeHeight = 9
)

func (model *TUIModel) View() string {
	if model.quitting {
		return ""
	}
	switch model.mode {
	case modeAlert:
		return model.renderAlertView()
	case modePicker:
		return model.renderPickerView()
	default:
		return model.renderChatView()
	}
}

func (model *TUIModel) renderChatView() string {
	headerSegments := []string{model.roomLabel, fmt.Sprintf("User %s", model.username)}
	if model.serverURL != "" {
		headerSegments = append(headerSegments, fmt.Sprintf("Server %s", model.serverURL))
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	messages := messageBoxStyle.Render(model.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, messages, model.renderRoster())

	hint := "Enter send • Tab online users • Ctrl+O common room • Ctrl+F attach • /help • Ctrl+C quit"
	if model.mode == modeRoster {
		hint = "↑/↓ select • Enter private chat • Tab/Esc back"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		model.renderStatus(),
		body,
		inputBoxStyle.Render(model.textInput.View()),
		menuHintStyle.Render(hint),
	)
}

func (model *TUIModel) renderStatus() string {
	var status string
	switch {
	case model.connectionError != nil:
		status = errorStyle.Render("Connection error: " + model.connectionError.Error())
	case model.isConnected:
		status = connectedStyle.Render("Connected")
	default:
		status = connectingStyle.Render("Connecting…")
	}
	if uploading := model.uploadingLabel(); uploading != "" {
		status += dividerStyle + connectingStyle.Render("Uploading "+uploading)
	}
	return status
}

func (model *TUIModel) renderRoster() string {
	lines := []string{rosterTitleStyle.Render("Online Users")}
	users := model.roster.Users()
	if len(users) == 0 {
		lines = append(lines, menuHintStyle.Render("nobody else here"))
	}
	for idx, user := range users {
		if model.mode == modeRoster && idx == model.selectedUser {
			lines = append(lines, userSelectedStyle.Render("➤ "+user))
		} else {
			lines = append(lines, userItemStyle.Render("  "+user))
		}
	}
	style := rosterBoxStyle
	if model.mode == modeRoster {
		style = rosterFocusStyle
	}
	return style.Width(rosterWidth).Height(model.viewport.Height).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (model *TUIModel) renderPickerView() string {
	title := chatHeaderStyle.Render(fmt.Sprintf("Send a file to %s", model.roomLabel))
	current := menuHintStyle.Render(model.filepicker.CurrentDirectory)
	hint := menuHintStyle.Render("↑/↓ move • Enter open/send • ← up a directory • Esc cancel")
	return lipgloss.JoinVertical(lipgloss.Left, title, current, model.filepicker.View(), hint)
}

func (model *TUIModel) renderAlertView() string {
	text := ""
	if len(model.alerts) > 0 {
		text = model.alerts[0]
	}
	box := alertBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		errorStyle.Render(text),
		"",
		menuHintStyle.Render("Press Enter to dismiss"),
	))
	if model.width == 0 || model.height == 0 {
		return box
	}
	return lipgloss.Place(model.width, model.height, lipgloss.Center, lipgloss.Center, box)
}

// renderBlock draws one message list entry.
func renderBlock(block render.Block) string {
	if block.Kind == render.BlockNotice {
		return systemMessageStyle.Render(block.Body)
	}
	lines := []string{messageBodyStyle.Render(block.Body)}
	if attachment := block.Attachment; attachment != nil {
		lines = append(lines, renderAttachment(*attachment))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAttachment(attachment render.Attachment) string {
	switch attachment.Kind {
	case render.AttachmentImage:
		return imageStyle.Render("[image] " + attachment.URL)
	case render.AttachmentVideo:
		return videoStyle.Render("[video ▶] " + attachment.URL)
	default:
		return linkStyle.Render(attachment.Label) + menuHintStyle.Render(" "+attachment.URL)
	}
}

func (model *TUIModel) refreshViewport() {
	if len(model.blocks) == 0 {
		model.viewport.SetContent(menuHintStyle.Render("No messages yet. Say hi and start the conversation."))
		return
	}
	rendered := make([]string, 0, len(model.blocks))
	width := model.viewport.Width
	for _, block := range model.blocks {
		rendered = append(rendered, lipgloss.NewStyle().Width(width).Render(renderBlock(block)))
	}
	model.viewport.SetContent(strings.Join(rendered, "\n"))
}

func (model *TUIModel) resize(width, height int) {
	model.width = width
	model.height = height
	model.viewport.Width = max(width-rosterWidth-6, 20)
	model.viewport.Height = max(height-chromeHeight, 3)
	model.textInput.Width = max(width-6, 10)
	model.refreshViewport()
	model.viewport.GotoBottom()
}
