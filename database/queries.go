package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ============================================
// Submissions
// ============================================

func (db *DB) InsertSubmission(ctx context.Context, s *Submission) (int64, error) {
	kinds := make([]string, len(s.Items))
	refs := make([]string, len(s.Items))
	for i, it := range s.Items {
		kinds[i] = string(it.Kind)
		refs[i] = it.Ref
	}

	query := `
		INSERT INTO submissions (user_id, username, first_name, media_kinds, media_refs, caption)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := db.q.QueryRow(ctx, query, s.UserID, s.Username, s.FirstName, kinds, refs, s.Caption).Scan(&id)
	return id, err
}

func (db *DB) GetSubmission(ctx context.Context, id int64) (*Submission, error) {
	query := `
		SELECT id, user_id, username, first_name, media_kinds, media_refs,
		       caption, status, rejection_reason, created_at
		FROM submissions
		WHERE id = $1`

	var s Submission
	var kinds, refs []string
	err := db.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Username, &s.FirstName, &kinds, &refs,
		&s.Caption, &s.Status, &s.RejectionReason, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Items = make([]MediaItem, len(refs))
	for i := range refs {
		s.Items[i] = MediaItem{Kind: MediaKind(kinds[i]), Ref: refs[i]}
	}
	return &s, nil
}

// UpdateSubmissionStatus переводит заявку из pending в терминальный статус.
// Терминальные статусы неизменяемы: повторный перевод даёт ErrNotFound.
func (db *DB) UpdateSubmissionStatus(ctx context.Context, id int64, status Status, reason *string) error {
	query := `
		UPDATE submissions
		SET status = $1, rejection_reason = $2
		WHERE id = $3 AND status = 'pending'`

	tag, err := db.q.Exec(ctx, query, status, reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================
// Gate state
// ============================================

func (db *DB) GetGateActive(ctx context.Context) (bool, error) {
	var active bool
	err := db.q.QueryRow(ctx, `SELECT is_active FROM gate_state WHERE id = 1`).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		// Строка создаётся миграцией, но по умолчанию приём включён
		return true, nil
	}
	return active, err
}

func (db *DB) SetGateActive(ctx context.Context, active bool) error {
	query := `
		INSERT INTO gate_state (id, is_active)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active`

	_, err := db.q.Exec(ctx, query, active)
	return err
}
