package message

import "slices"

// Upsert replaces the message in msgs with the same ID as m, or appends m when
// none exists. The returned slice may share storage with msgs.
func Upsert(msgs []Message, m Message) []Message {
	if i := Index(msgs, m.ID); i >= 0 {
		msgs[i] = m
		return msgs
	}
	return append(msgs, m)
}

// Index returns the position of the message with the given ID, or -1.
func Index(msgs []Message, id string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
}

// Sendable returns the messages a backend may see, dropping local and error
// messages. Order is preserved.
func Sendable(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind.Sendable() {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the final message of msgs.
func Last(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}
