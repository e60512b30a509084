package presence

import (
	"fmt"

	"roomchat/internal/protocol"
)

// Emitter sends an event to the pub/sub server.
type Emitter interface {
	Emit(event protocol.Event, payload any) error
}

// Roster is the list of other users currently online. Every update replaces
// it wholesale; the server is trusted to send a current snapshot.
type Roster struct {
	self  string
	users []string
}

// NewRoster builds an empty roster for the local user self.
func NewRoster(self string) *Roster {
	return &Roster{self: self}
}

// Update replaces the roster with users, dropping the local user.
func (r *Roster) Update(users []string) {
	next := make([]string, 0, len(users))
	for _, user := range users {
		if user == r.self {
			continue
		}
		next = append(next, user)
	}
	r.users = next
}

// Users returns the rendered entries in server order.
func (r *Roster) Users() []string {
	return r.users
}

func (r *Roster) Len() int {
	return len(r.users)
}

// StartPrivate asks the server to open a private room with the user at index.
func (r *Roster) StartPrivate(emitter Emitter, index int) error {
	if index < 0 || index >= len(r.users) {
		return fmt.Errorf("no online user at position %d", index)
	}
	return RequestPrivate(emitter, r.users[index])
}

// RequestPrivate emits start_private for target.
func RequestPrivate(emitter Emitter, target string) error {
	if err := emitter.Emit(protocol.EventStartPrivate, protocol.StartPrivatePayload{Target: target}); err != nil {
		return fmt.Errorf("start private chat with %s: %w", target, err)
	}
	return nil
}
