package export

import (
	"context"
	"strings"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

const transcriptTime = "2006-01-02 15:04:05"

// Transcript renders a chat as plain text: a header naming the chat, then
// one block per message with sender, timestamp and text.
func Transcript(chat ibex.Chat, opts ...Option) string {
	return buildOptions(opts).transcript(chat)
}

func (o options) transcript(chat ibex.Chat) string {
	var b strings.Builder
	b.WriteString("Chat with: " + chat.DisplayName + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, m := range chat.Messages {
		b.WriteString("[" + o.format(m.Date, transcriptTime) + "] " + sender(chat, m) + ":\n")
		b.WriteString("  " + m.Text + "\n\n")
	}
	return b.String()
}

func sender(chat ibex.Chat, m ibex.Message) string {
	switch {
	case m.IsFromMe:
		return "Me"
	case m.Handle != "":
		return m.Handle
	default:
		return chat.DisplayName
	}
}

// Messages writes one transcript per chat. Chats without messages are skipped.
func Messages(ctx context.Context, chats []ibex.Chat, s ibex.Sink, opts ...Option) (Result, error) {
	o := buildOptions(opts)
	var nonEmpty []ibex.Chat
	for _, c := range chats {
		if len(c.Messages) > 0 {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return perItem(ctx, o, s, nonEmpty,
		func(c ibex.Chat) string { return sanitize(c.DisplayName, " ._-@+", 0) + ".txt" },
		o.transcript)
}
