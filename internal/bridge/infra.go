package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLRepo implements ContactRepo, MessageRepo and SettingsStore on top of
// database/sql. Queries are written to run unchanged on postgres and sqlite.
type SQLRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const contactColumns = `id, chat_id, stage, lead_type, summary, opt_out, created_at, updated_at`

func (r *SQLRepo) GetContact(ctx context.Context, chatID string) (*Contact, error) {
	var c Contact
	err := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE chat_id = $1
	`, chatID).Scan(
		&c.ID,
		&c.ChatID,
		&c.Stage,
		&c.LeadType,
		&c.Summary,
		&c.OptOut,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

func (r *SQLRepo) CreateContact(ctx context.Context, c *Contact) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chat_id) DO NOTHING
	`,
		c.ID,
		c.ChatID,
		c.Stage,
		c.LeadType,
		c.Summary,
		c.OptOut,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create contact: %w", err)
	}
	return n == 1, nil
}

func (r *SQLRepo) MarkOptOut(ctx context.Context, chatID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, '', TRUE, $5, $6)
		ON CONFLICT (chat_id) DO UPDATE
		SET opt_out = TRUE, updated_at = excluded.updated_at
	`,
		newContactID(),
		chatID,
		StageStart,
		LeadTypeUnknown,
		at,
		at,
	)
	if err != nil {
		return fmt.Errorf("mark opt-out: %w", err)
	}
	return nil
}

func (r *SQLRepo) UpdateContactState(ctx context.Context, contactID string, st ContactState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET stage = $2, lead_type = $3, summary = $4, updated_at = $5
		WHERE id = $1
	`,
		contactID,
		st.Stage,
		st.LeadType,
		st.Summary,
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

func (r *SQLRepo) InsertInbound(ctx context.Context, m *Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("insert inbound: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertMessage(ctx, tx, m)
	if err != nil {
		return false, fmt.Errorf("insert inbound: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO replies (provider_message_id, status, attempts, error, updated_at)
		VALUES ($1, $2, 1, '', $3)
	`, m.ProviderMessageID, string(ReplyPending), r.now()); err != nil {
		return false, fmt.Errorf("insert reply state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("insert inbound: %w", err)
	}
	return true, nil
}

func (r *SQLRepo) InsertOutbound(ctx context.Context, m *Message) error {
	if _, err := insertMessage(ctx, r.db, m); err != nil {
		return fmt.Errorf("insert outbound: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertMessage is the dedup gate: one conditional insert, no read first.
func insertMessage(ctx context.Context, db execer, m *Message) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, contact_id, direction, provider_message_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_message_id) DO NOTHING
	`,
		m.ID,
		m.ContactID,
		string(m.Direction),
		m.ProviderMessageID,
		m.Text,
		m.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLRepo) ListRecentMessages(ctx context.Context, contactID string, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, direction, provider_message_id, text, created_at
		FROM messages
		WHERE contact_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var dir string
		if err := rows.Scan(
			&m.ID,
			&m.ContactID,
			&dir,
			&m.ProviderMessageID,
			&m.Text,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		m.Direction = Direction(dir)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// newest-first from the query, oldest-first for the caller
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLRepo) ReclaimReply(ctx context.Context, providerMessageID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE replies
		SET status = $2, attempts = attempts + 1, error = '', updated_at = $3
		WHERE provider_message_id = $1 AND status = $4
	`, providerMessageID, string(ReplyPending), r.now(), string(ReplyRetryable))
	if err != nil {
		return false, fmt.Errorf("reclaim reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reclaim reply: %w", err)
	}
	return n == 1, nil
}

func (r *SQLRepo) SetReplyStatus(ctx context.Context, providerMessageID string, status ReplyStatus, errText string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE replies
		SET status = $2, error = $3, updated_at = $4
		WHERE provider_message_id = $1
	`, providerMessageID, string(status), errText, r.now())
	if err != nil {
		return fmt.Errorf("set reply status: %w", err)
	}
	return nil
}

func (r *SQLRepo) ListHistory(ctx context.Context, limit int) ([]HistoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.contact_id, m.direction, m.provider_message_id, m.text, m.created_at,
		       c.chat_id, c.lead_type, c.stage
		FROM messages m
		JOIN contacts c ON c.id = m.contact_id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := []HistoryItem{}
	for rows.Next() {
		var h HistoryItem
		var dir string
		if err := rows.Scan(
			&h.ID,
			&h.ContactID,
			&dir,
			&h.ProviderMessageID,
			&h.Text,
			&h.CreatedAt,
			&h.ChatID,
			&h.LeadType,
			&h.Stage,
		); err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		h.Direction = Direction(dir)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLRepo) GetSettings(ctx context.Context) (Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string, len(SettingKeys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("get settings: %w", err)
		}
		m[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return SettingsFromMap(m), nil
}

func (r *SQLRepo) PutSettings(ctx context.Context, s Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	defer tx.Rollback()

	values := s.Map()
	for _, k := range SettingKeys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value
		`, k, values[k]); err != nil {
			return fmt.Errorf("put settings %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
