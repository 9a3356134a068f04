package extract

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
)

// Messages reads the messages store.
type Messages struct {
	store store
	chats lazy[ibex.Chat]
}

// NewMessages returns a messages extractor over index.
func NewMessages(index ibex.Index, opts ...Option) *Messages {
	o := buildOptions(opts)
	return &Messages{store: newStore("messages", index, o, locate.Messages)}
}

// Chats returns every chat with its messages in chronological order. Chats
// are ordered by latest message, newest first; chats without any dated
// message come last.
func (m *Messages) Chats(ctx context.Context) []ibex.Chat {
	return m.chats.get(ctx, func(ctx context.Context) []ibex.Chat {
		chats := load(ctx, m.store, []probe[ibex.Chat]{
			{name: "chat", run: m.readChats},
		})
		sort.SliceStable(chats, func(i, j int) bool {
			return newerFirst(chats[i].LastActivity, chats[j].LastActivity)
		})
		return chats
	})
}

func (m *Messages) readChats(ctx context.Context, db *sql.DB) ([]ibex.Chat, error) {
	handles, err := readHandles(ctx, db)
	if err != nil {
		return nil, err
	}

	chats, index, err := readChatRows(ctx, db)
	if err != nil {
		return nil, err
	}

	if err := readMessages(ctx, db, m.store.logger, chats, index, handles); err != nil {
		return nil, err
	}
	if err := readParticipants(ctx, db, chats, index, handles); err != nil {
		return nil, err
	}
	return chats, nil
}

func readHandles(ctx context.Context, db *sql.DB) (map[int64]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT ROWID, id FROM handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	handles := make(map[int64]string)
	for rows.Next() {
		var (
			id     int64
			handle sql.NullString
		)
		if err := rows.Scan(&id, &handle); err != nil {
			return nil, fmt.Errorf("scanning handle: %w", err)
		}
		handles[id] = handle.String
	}
	return handles, rows.Err()
}

func readChatRows(ctx context.Context, db *sql.DB) ([]ibex.Chat, map[int64]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT ROWID, chat_identifier, display_name FROM chat`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var chats []ibex.Chat
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id                int64
			identifier, label sql.NullString
		)
		if err := rows.Scan(&id, &identifier, &label); err != nil {
			return nil, nil, fmt.Errorf("scanning chat: %w", err)
		}
		name := label.String
		if name == "" {
			name = identifier.String
		}
		if name == "" {
			name = ibex.Unknown
		}
		index[id] = len(chats)
		chats = append(chats, ibex.Chat{ID: id, Identifier: identifier.String, DisplayName: name})
	}
	return chats, index, rows.Err()
}

func readMessages(ctx context.Context, db *sql.DB, logger ibex.Logger, chats []ibex.Chat, index map[int64]int, handles map[int64]string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT m.ROWID, m.text, CAST(m.date AS REAL), m.is_from_me, m.handle_id, m.service, cmj.chat_id
		FROM message m
		LEFT JOIN chat_message_join cmj ON m.ROWID = cmj.message_id
		ORDER BY m.date`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id            int64
			text, service sql.NullString
			date          sql.NullFloat64
			fromMe        sql.NullInt64
			handleID      sql.NullInt64
			chatID        sql.NullInt64
		)
		if err := rows.Scan(&id, &text, &date, &fromMe, &handleID, &service, &chatID); err != nil {
			return fmt.Errorf("scanning message: %w", err)
		}
		i, ok := index[chatID.Int64]
		if !chatID.Valid || !ok {
			continue
		}

		msg := ibex.Message{
			ID:       id,
			ChatID:   chatID.Int64,
			Text:     text.String,
			Date:     ibex.FromPlatformMessageTime(date.Float64),
			IsFromMe: fromMe.Int64 != 0,
			HandleID: handleID.Int64,
			Handle:   handles[handleID.Int64],
			Service:  service.String,
		}
		if !ibex.IsPlausibleMessageTime(msg.Date) {
			logger.Debug("message date out of range, unit guess may be wrong",
				"message", id, "raw", date.Float64,
				"nanoseconds", ibex.IsNanosecondMessageTime(date.Float64), "date", msg.Date)
		}
		chat := &chats[i]
		chat.Messages = append(chat.Messages, msg)
		if msg.Date.After(chat.LastActivity) {
			chat.LastActivity = msg.Date
		}
	}
	return rows.Err()
}

func readParticipants(ctx context.Context, db *sql.DB, chats []ibex.Chat, index map[int64]int, handles map[int64]string) error {
	rows, err := db.QueryContext(ctx, `SELECT chat_id, handle_id FROM chat_handle_join`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var chatID, handleID sql.NullInt64
		if err := rows.Scan(&chatID, &handleID); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		i, ok := index[chatID.Int64]
		handle, known := handles[handleID.Int64]
		if !ok || !known {
			continue
		}
		chats[i].Participants = append(chats[i].Participants, handle)
	}
	return rows.Err()
}

// MessageStats summarises the messages store.
type MessageStats struct {
	Chats     int
	Messages  int
	IMessages int
	SMS       int
}

// Stats summarises Chats.
func (m *Messages) Stats(ctx context.Context) MessageStats {
	var s MessageStats
	for _, chat := range m.Chats(ctx) {
		s.Chats++
		for _, msg := range chat.Messages {
			s.Messages++
			if msg.Service == ibex.ServiceIMessage {
				s.IMessages++
			}
		}
	}
	s.SMS = s.Messages - s.IMessages
	return s
}
