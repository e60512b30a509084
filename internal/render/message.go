// Package render turns inbound payloads into display blocks. It knows nothing
// about the terminal; the UI decides how a block looks.
package render

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"roomchat/internal/protocol"
)

// AttachmentKind says how an attachment is shown.
type AttachmentKind int

const (
	AttachmentImage AttachmentKind = iota + 1
	AttachmentVideo
	AttachmentDownload
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentImage:
		return "image"
	case AttachmentVideo:
		return "video"
	case AttachmentDownload:
		return "download"
	}
	return "unknown"
}

// DownloadLabel is the link text for attachments that are neither image nor video.
const DownloadLabel = "Download file"

var (
	imageSuffixes = []string{".jpeg", ".jpg", ".gif", ".png"}
	videoSuffixes = []string{".mp4", ".mov", ".avi"}
)

// Attachment is the single element rendered under a message body.
type Attachment struct {
	Kind     AttachmentKind
	URL      string
	Label    string
	Controls bool
}

// BlockKind separates chat messages from local system notices.
type BlockKind int

const (
	BlockMessage BlockKind = iota
	BlockNotice
)

// Block is one entry in the message list.
type Block struct {
	Kind       BlockKind
	Body       string
	Attachment *Attachment
}

// BodyFilter transforms a message body before display.
type BodyFilter func(string) string

// RawBody keeps the body exactly as the server sent it. The client performs
// no escaping; upstream is trusted to send safe markup.
func RawBody(body string) string {
	return body
}

// StripMarkup removes every tag and keeps the text content.
func StripMarkup() BodyFilter {
	policy := bluemonday.StrictPolicy()
	return policy.Sanitize
}

// Renderer builds blocks from message payloads.
type Renderer struct {
	filter BodyFilter
}

// NewRenderer returns a renderer using filter; nil means RawBody.
func NewRenderer(filter BodyFilter) *Renderer {
	if filter == nil {
		filter = RawBody
	}
	return &Renderer{filter: filter}
}

// Message renders a message payload. A block carries at most one attachment.
func (r *Renderer) Message(payload protocol.MessagePayload) Block {
	block := Block{Kind: BlockMessage, Body: r.filter(payload.Msg)}
	if payload.FileURL != "" {
		attachment := Classify(payload.FileURL)
		block.Attachment = &attachment
	}
	return block
}

// Notice renders a local system line, such as a private chat announcement.
func Notice(text string) Block {
	return Block{Kind: BlockNotice, Body: text}
}

// Classify picks the attachment kind from the URL suffix alone. Matching is
// case sensitive and runs against the whole URL, so "a.PNG" or "a.png?x=1"
// are downloads.
func Classify(url string) Attachment {
	switch {
	case hasAnySuffix(url, imageSuffixes):
		return Attachment{Kind: AttachmentImage, URL: url}
	case hasAnySuffix(url, videoSuffixes):
		return Attachment{Kind: AttachmentVideo, URL: url, Controls: true}
	default:
		return Attachment{Kind: AttachmentDownload, URL: url, Label: DownloadLabel}
	}
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
