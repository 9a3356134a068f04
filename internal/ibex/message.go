package ibex

import "time"

// ServiceIMessage is the service tag of messages sent over the data network.
const ServiceIMessage = "iMessage"

// Message is one message within a chat.
type Message struct {
	ID       int64
	ChatID   int64
	Text     string
	Date     time.Time // zero when absent
	IsFromMe bool
	HandleID int64
	Handle   string // originating handle, empty when unknown
	Service  string
}

// Chat is a conversation with its participants and messages.
type Chat struct {
	ID           int64
	Identifier   string
	DisplayName  string
	Participants []string
	Messages     []Message // chronological
	LastActivity time.Time // zero when no message carries a timestamp
}

// Preview returns up to 100 runes of the last message.
func (c *Chat) Preview() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return truncateRunes(c.Messages[len(c.Messages)-1].Text, 100)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
