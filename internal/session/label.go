package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PrivatePrefix marks pairwise rooms, e.g. "private_alice_bob".
const PrivatePrefix = "private_"

// IsPrivate reports whether room is a pairwise room.
func IsPrivate(room string) bool {
	return strings.HasPrefix(room, PrivatePrefix)
}

// RoomLabel turns a room identifier into the header text:
// "private_alice_bob" -> "Private Chat: alice & bob", "common" -> "Common Chat Room".
// Only the first underscore after the prefix becomes " & ".
func RoomLabel(room string) string {
	if IsPrivate(room) {
		pair := strings.TrimPrefix(room, PrivatePrefix)
		return "Private Chat: " + strings.Replace(pair, "_", " & ", 1)
	}
	return capitalize(room) + " Chat Room"
}

func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}
