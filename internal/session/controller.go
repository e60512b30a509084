// Package session owns the client's notion of "the room I am in" and the
// leave/join transition between rooms.
package session

import (
	"errors"
	"fmt"

	"roomchat/internal/protocol"
)

// CommonRoom is the shared room every client starts in unless configured otherwise.
const CommonRoom = "common"

// ErrEmptyRoom is returned when a transition targets an empty room name.
var ErrEmptyRoom = errors.New("room name is empty")

// Emitter sends an event to the pub/sub server.
type Emitter interface {
	Emit(event protocol.Event, payload any) error
}

// View is the part of the screen the controller drives.
type View interface {
	SetRoomLabel(label string)
	ClearMessages()
}

// State is the per-client session. There is exactly one current room.
type State struct {
	currentRoom string
}

// CurrentRoom returns the room the client considers itself joined to.
func (s *State) CurrentRoom() string {
	return s.currentRoom
}

// Controller performs room transitions. All calls are expected from a single
// goroutine (the UI update loop), so it holds no lock.
type Controller struct {
	state   State
	emitter Emitter
	view    View
}

// NewController seeds the session with the initial room and shows its label.
// Nothing is emitted until Join is called.
func NewController(initialRoom string, emitter Emitter, view View) *Controller {
	controller := &Controller{
		state:   State{currentRoom: initialRoom},
		emitter: emitter,
		view:    view,
	}
	view.SetRoomLabel(RoomLabel(initialRoom))
	return controller
}

// CurrentRoom returns the active room.
func (c *Controller) CurrentRoom() string {
	return c.state.CurrentRoom()
}

// Join announces the current room to the server. Called on (re)connect.
func (c *Controller) Join() error {
	if c.state.currentRoom == "" {
		return ErrEmptyRoom
	}
	return c.emit(protocol.EventJoin, c.state.currentRoom)
}

// SwitchRoom leaves the current room, records target, relabels the header,
// joins target and clears the message list, in that order. Emit failures do
// not stop the transition; they are returned together once every step ran.
func (c *Controller) SwitchRoom(target string) error {
	if target == "" {
		return ErrEmptyRoom
	}
	leaveErr := c.emit(protocol.EventLeave, c.state.currentRoom)
	c.state.currentRoom = target
	c.view.SetRoomLabel(RoomLabel(target))
	joinErr := c.emit(protocol.EventJoin, target)
	c.view.ClearMessages()
	return errors.Join(leaveErr, joinErr)
}

func (c *Controller) emit(event protocol.Event, room string) error {
	if err := c.emitter.Emit(event, protocol.RoomPayload{Room: room}); err != nil {
		return fmt.Errorf("%s %s: %w", event, room, err)
	}
	return nil
}
