// Package postgres stores feedback in the feedback table created by migrations/.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/dreambot/internal/feedback"
)

const insertFeedback = `
INSERT INTO feedback (id, user_id, flow, reading_id, body, created_at)
VALUES (:id, :user_id, :flow, :reading_id, :body, :created_at)`

type row struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	Flow      string    `db:"flow"`
	ReadingID string    `db:"reading_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// Journal implements feedback.Journal on postgres.
type Journal struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("postgres journal: db must not be nil")
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Save(ctx context.Context, e feedback.Entry) error {
	_, err := j.db.NamedExecContext(ctx, insertFeedback, row{
		ID:        e.ID,
		UserID:    e.UserID,
		Flow:      string(e.Flow),
		ReadingID: e.ReadingID,
		Body:      e.Text,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("postgres journal: insert feedback: %w", err)
	}
	return nil
}

// CountByFlow returns how many entries exist per flow.
func (j *Journal) CountByFlow(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Flow  string `db:"flow"`
		Count int    `db:"count"`
	}
	if err := j.db.SelectContext(ctx, &rows, `SELECT flow, COUNT(*) AS count FROM feedback GROUP BY flow`); err != nil {
		return nil, fmt.Errorf("postgres journal: count: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Flow] = r.Count
	}
	return out, nil
}
