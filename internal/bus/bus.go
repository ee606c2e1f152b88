// Package bus implements the durable message log every Majordomo component
// publishes through. The bus is a pure log plus query surface: it has no
// notion of subscribers, keeping delivery concerns out of storage concerns.
package bus

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// ErrBadCursor is returned when a history cursor references an unknown message.
var ErrBadCursor = errors.New("unknown history cursor")

// DefaultHistoryLimit caps history pages when the caller gives no limit.
const DefaultHistoryLimit = 50

// Bus appends to and queries the message log. Messages are immutable once
// appended; corrections are modeled as new messages.
type Bus struct {
	db *store.DB
	// now is injectable for tests.
	now func() time.Time
}

// New creates a Bus backed by the given database.
func New(db *store.DB) *Bus {
	return &Bus{db: db, now: time.Now}
}

// Send appends a message, assigning its id and timestamp, and returns the
// durable record. Callers never guess ids.
func (b *Bus) Send(msg models.BusMessage) (*models.BusMessage, error) {
	if msg.Type == "" {
		msg.Type = models.MessageChat
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("send: invalid message type %q", msg.Type)
	}

	msg.ID = uuid.New().String()
	msg.CreatedAt = b.now().UTC()

	_, err := b.db.Exec(`
		INSERT INTO messages (id, from_agent_id, to_agent_id, type, content, conversation_id, project_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, nullableStr(msg.FromAgentID), nullableStr(msg.ToAgentID), string(msg.Type), msg.Content,
		nullableStr(msg.ConversationID), nullableStr(msg.ProjectID), msg.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	return &msg, nil
}

// HistoryFilter selects a slice of the log.
type HistoryFilter struct {
	// ProjectID limits results to one project's messages.
	ProjectID string
	// AgentID limits results to messages the agent sent or received.
	AgentID string
	// Limit caps the page size. Defaults to DefaultHistoryLimit.
	Limit int
	// Before is an opaque cursor: the id of the oldest message of the
	// previous page. Only strictly older messages are returned, so
	// consecutive pages never duplicate or skip entries.
	Before string
}

// History returns a reverse-chronological page of the log. Ordering is
// append order: the messages table carries a monotonic sequence number, so
// equal timestamps can never reorder or split a page incorrectly.
func (b *Bus) History(f HistoryFilter) ([]models.BusMessage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id, from_agent_id, to_agent_id, type, content, conversation_id, project_id, created_at
		FROM messages WHERE 1=1
	`
	var args []any

	if f.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, f.ProjectID)
	}
	if f.AgentID != "" {
		query += " AND (from_agent_id = ? OR to_agent_id = ?)"
		args = append(args, f.AgentID, f.AgentID)
	}
	if f.Before != "" {
		seq, err := b.seqOf(f.Before)
		if err != nil {
			return nil, err
		}
		query += " AND seq < ?"
		args = append(args, seq)
	}

	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var msgs []models.BusMessage
	for rows.Next() {
		var m models.BusMessage
		var from, to, conv, proj sql.NullString
		var typ, createdAt string
		if err := rows.Scan(&m.ID, &from, &to, &typ, &m.Content, &conv, &proj, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FromAgentID = from.String
		m.ToAgentID = to.String
		m.ConversationID = conv.String
		m.ProjectID = proj.String
		m.Type = models.MessageType(typ)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// seqOf resolves a message id to its append sequence number.
func (b *Bus) seqOf(id string) (int64, error) {
	var seq int64
	row := b.db.QueryRow(`SELECT seq FROM messages WHERE id = ?`, id)
	if err := row.Scan(&seq); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrBadCursor
		}
		return 0, fmt.Errorf("resolve cursor: %w", err)
	}
	return seq, nil
}

func nullableStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
