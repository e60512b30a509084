package protocol

// Event names a socket event. Frames carry it in the envelope's "event" field.
type Event string

const (
	// client -> server
	EventJoin         Event = "join"
	EventLeave        Event = "leave"
	EventText         Event = "text"
	EventStartPrivate Event = "start_private"

	// server -> client
	EventOnlineUsers     Event = "online_users"
	EventMessage         Event = "message"
	EventPrivateStarted  Event = "private_started"
	EventInitiatePrivate Event = "initiate_private"
)

// RoomPayload is the body of join, leave and private_started.
type RoomPayload struct {
	Room string `json:"room"`
}

// TextPayload is a chat line sent to a room.
type TextPayload struct {
	Msg  string `json:"msg"`
	Room string `json:"room"`
}

// StartPrivatePayload asks the server to open a private room with Target.
type StartPrivatePayload struct {
	Target string `json:"target"`
}

// MessagePayload is a message broadcast to the current room. Msg is markup
// produced upstream; FileURL is set when the message carries an attachment.
type MessagePayload struct {
	Msg     string `json:"msg"`
	FileURL string `json:"file_url,omitempty"`
}

// InitiatePrivatePayload tells the peer that Sender opened Room with them.
type InitiatePrivatePayload struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
}

// OnlineUsersPayload is the full presence snapshot.
type OnlineUsersPayload []string
