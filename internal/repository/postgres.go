package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMessageLimit = 200

// PostgresStore is a Store over pgx. The schema lives in pkg/database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertUser(ctx context.Context, m thread.Member) error {
	if m.ID == "" {
		return hrchat_errors.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_users (id, name, role, department)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, role = EXCLUDED.role, department = EXCLUDED.department, updated_at = now()`,
		m.ID, m.Name, m.Role, m.Department)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (thread.Member, error) {
	var m thread.Member
	err := s.pool.QueryRow(ctx, `SELECT id, name, role, department FROM chat_users WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Role, &m.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return thread.Member{}, hrchat_errors.ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) ([]thread.Member, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, role, department FROM chat_users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]thread.Member, 0, len(ids))
	for rows.Next() {
		var m thread.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Department); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateThread(ctx context.Context, t NewThread) error {
	meta, err := encodeMeta(t.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode thread meta: %w", err)
	}

	err = WithTx(ctx, s.pool, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_threads (id, is_direct, name, direct_key, meta)
			VALUES ($1, $2, $3, $4, $5)`,
			t.Thread.ID, t.Thread.IsDirect, t.Thread.Name, nullIfEmpty(t.DirectKey), meta); err != nil {
			return err
		}
		for _, m := range t.Thread.Members {
			if _, err := tx.Exec(ctx, `
				INSERT INTO chat_thread_members (thread_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, t.Thread.ID, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return hrchat_errors.ErrAlreadyExists
	}
	return err
}

const threadColumns = `
	t.id, t.is_direct, t.name, t.last_message_text, t.last_message_at,
	t.last_sender_id, COALESCE(ls.name, '')`

func scanThread(row pgx.Row, extra ...any) (thread.Thread, error) {
	var (
		t      thread.Thread
		lastAt *time.Time
	)
	dest := append([]any{&t.ID, &t.IsDirect, &t.Name, &t.LastMessagePreview, &lastAt, &t.LastSenderID, &t.LastSenderName}, extra...)
	if err := row.Scan(dest...); err != nil {
		return thread.Thread{}, err
	}
	if lastAt != nil {
		t.LastMessageTime = lastAt.UTC()
	}
	return t, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, id string) (thread.Thread, error) {
	return s.getThread(ctx, `WHERE t.id = $1`, id)
}

func (s *PostgresStore) GetDirectThread(ctx context.Context, directKey string) (thread.Thread, error) {
	return s.getThread(ctx, `WHERE t.direct_key = $1`, directKey)
}

func (s *PostgresStore) getThread(ctx context.Context, where string, arg string) (thread.Thread, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+threadColumns+`
		FROM chat_threads t
		LEFT JOIN chat_users ls ON ls.id = t.last_sender_id
		`+where, arg)
	t, err := scanThread(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return thread.Thread{}, hrchat_errors.ErrNotFound
	}
	if err != nil {
		return thread.Thread{}, err
	}

	members, err := s.loadMembers(ctx, []string{t.ID})
	if err != nil {
		return thread.Thread{}, err
	}
	t.Members = members[t.ID]
	return t, nil
}

func (s *PostgresStore) ListThreadsForUser(ctx context.Context, userID string) ([]thread.Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+threadColumns+`, m.unread_count
		FROM chat_threads t
		JOIN chat_thread_members m ON m.thread_id = t.id AND m.user_id = $1
		LEFT JOIN chat_users ls ON ls.id = t.last_sender_id
		ORDER BY t.last_message_at DESC NULLS LAST, t.created_at DESC, t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]thread.Thread, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var unread int
		t, err := scanThread(rows, &unread)
		if err != nil {
			return nil, err
		}
		t.UnreadCount = unread
		out = append(out, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Members = members[out[i].ID]
	}
	return out, nil
}

func (s *PostgresStore) loadMembers(ctx context.Context, threadIDs []string) (map[string][]thread.Member, error) {
	out := make(map[string][]thread.Member, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.thread_id, m.user_id, COALESCE(u.name, ''), COALESCE(u.role, ''), COALESCE(u.department, '')
		FROM chat_thread_members m
		LEFT JOIN chat_users u ON u.id = m.user_id
		WHERE m.thread_id = ANY($1)
		ORDER BY m.joined_at, m.user_id`, threadIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			threadID string
			m        thread.Member
		)
		if err := rows.Scan(&threadID, &m.ID, &m.Name, &m.Role, &m.Department); err != nil {
			return nil, err
		}
		out[threadID] = append(out[threadID], m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IsMember(ctx context.Context, threadID, userID string) (bool, error) {
	var exists, member bool
	err := s.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM chat_threads WHERE id = $1),
			EXISTS (SELECT 1 FROM chat_thread_members WHERE thread_id = $1 AND user_id = $2)`,
		threadID, userID).Scan(&exists, &member)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, hrchat_errors.ErrNotFound
	}
	return member, nil
}

func (s *PostgresStore) ResetUnread(ctx context.Context, threadID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_thread_members SET unread_count = 0
		WHERE thread_id = $1 AND user_id = $2`, threadID, userID)
	return err
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m message.Message) error {
	err := WithTx(ctx, s.pool, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_messages (id, thread_id, sender_id, sender_name, text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.ThreadID, m.SenderID, m.SenderName, m.Text, m.Time); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE chat_threads
			SET last_message_text = $2, last_message_at = $3, last_sender_id = $4
			WHERE id = $1 AND (last_message_at IS NULL OR last_message_at <= $3)`,
			m.ThreadID, m.Text, m.Time, m.SenderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE chat_thread_members SET unread_count = unread_count + 1
			WHERE thread_id = $1 AND user_id <> $2`, m.ThreadID, m.SenderID)
		return err
	})
	switch {
	case isUniqueViolation(err):
		return hrchat_errors.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return hrchat_errors.ErrNotFound
	}
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID string, limit int) ([]message.Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_threads WHERE id = $1)`, threadID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, hrchat_errors.ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, sender_id, sender_name, text, created_at FROM (
			SELECT id, thread_id, sender_id, sender_name, text, created_at
			FROM chat_messages
			WHERE thread_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]message.Message, 0)
	for rows.Next() {
		var m message.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.SenderName, &m.Text, &m.Time); err != nil {
			return nil, err
		}
		m.Time = m.Time.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
