package internal

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Metrics counts what happened during one client session. It is logged once
// when the program exits.
type Metrics struct {
	messages     atomic.Uint64
	roomSwitches atomic.Uint64
	uploads      atomic.Uint64
	uploadErrors atomic.Uint64
	reconnects   atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncMessage() {
	m.messages.Add(1)
}

func (m *Metrics) IncRoomSwitch() {
	m.roomSwitches.Add(1)
}

func (m *Metrics) IncUpload() {
	m.uploads.Add(1)
}

func (m *Metrics) IncUploadError() {
	m.uploadErrors.Add(1)
}

func (m *Metrics) IncReconnect() {
	m.reconnects.Add(1)
}

// MarshalZerologObject lets the counters be logged with Event.Object.
func (m *Metrics) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("messages_total", m.messages.Load()).
		Uint64("room_switches_total", m.roomSwitches.Load()).
		Uint64("uploads_total", m.uploads.Load()).
		Uint64("upload_errors_total", m.uploadErrors.Load()).
		Uint64("reconnects_total", m.reconnects.Load())
}
