package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// PostgresStore is a Store backed by the meetings, meeting_transcripts and
// meeting_summaries tables.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates a new PostgreSQL meeting store.
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "meeting_store")),
	}
}

// GetMeeting implements Store.
func (s *PostgresStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	query := `
		SELECT id, title, meeting_date, meeting_time, duration_seconds,
		       provider, status, participants
		FROM meetings
		WHERE id = $1
	`

	var m Meeting
	var status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Title,
		&m.Date,
		&m.Time,
		&m.DurationSeconds,
		&m.Provider,
		&status,
		&m.Participants,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meeting %s: %w", id, mcerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	m.Status = ResolveStatus(status)
	return &m, nil
}

// GetTranscript implements Store. Words are stored as a JSONB array.
func (s *PostgresStore) GetTranscript(ctx context.Context, meetingID string) (*transcript.Transcript, error) {
	query := `
		SELECT full_text, words
		FROM meeting_transcripts
		WHERE meeting_id = $1
	`

	var text string
	var raw []byte
	err := s.pool.QueryRow(ctx, query, meetingID).Scan(&text, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transcript for meeting %s: %w", meetingID, mcerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	var words []transcript.Word
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &words); err != nil {
			return nil, fmt.Errorf("failed to decode transcript words: %w", err)
		}
	}

	t, err := transcript.FromDocument(transcript.Document{Text: text, Words: words})
	if err != nil {
		s.logger.Warn("Stored transcript failed validation",
			logging.F("meeting_id", meetingID),
			logging.Err(err))
		return nil, err
	}
	return t, nil
}

// GetSummary implements Store.
func (s *PostgresStore) GetSummary(ctx context.Context, meetingID string) (*Summary, error) {
	query := `
		SELECT meeting_id, summary_text, action_items, created_at
		FROM meeting_summaries
		WHERE meeting_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var sum Summary
	var items []byte
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, query, meetingID).Scan(&sum.MeetingID, &sum.Text, &items, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("summary for meeting %s: %w", meetingID, mcerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	sum.CreatedAt = createdAt

	if len(items) > 0 {
		if err := json.Unmarshal(items, &sum.ActionItems); err != nil {
			return nil, fmt.Errorf("failed to decode action items: %w", err)
		}
	}
	return &sum, nil
}

// SaveBundle upserts a meeting with its transcript and summary in one transaction.
func (s *PostgresStore) SaveBundle(ctx context.Context, b *Bundle) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m := b.Meeting
	_, err = tx.Exec(ctx, `
		INSERT INTO meetings (id, title, meeting_date, meeting_time, duration_seconds, provider, status, participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			meeting_date = EXCLUDED.meeting_date,
			meeting_time = EXCLUDED.meeting_time,
			duration_seconds = EXCLUDED.duration_seconds,
			provider = EXCLUDED.provider,
			status = EXCLUDED.status,
			participants = EXCLUDED.participants
	`, m.ID, m.Title, m.Date, m.Time, m.DurationSeconds, m.Provider, string(m.Status), m.Participants)
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}

	if b.Transcript != nil {
		words, err := json.Marshal(b.Transcript.Words())
		if err != nil {
			return fmt.Errorf("failed to encode transcript words: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO meeting_transcripts (meeting_id, full_text, words)
			VALUES ($1, $2, $3)
			ON CONFLICT (meeting_id) DO UPDATE SET full_text = EXCLUDED.full_text, words = EXCLUDED.words
		`, m.ID, b.Transcript.Text(), words)
		if err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
	}

	if b.Summary != nil {
		items, err := json.Marshal(b.Summary.ActionItems)
		if err != nil {
			return fmt.Errorf("failed to encode action items: %w", err)
		}
		createdAt := b.Summary.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO meeting_summaries (meeting_id, summary_text, action_items, created_at)
			VALUES ($1, $2, $3, $4)
		`, m.ID, b.Summary.Text, items, createdAt)
		if err != nil {
			return fmt.Errorf("failed to save summary: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit meeting bundle: %w", err)
	}

	s.logger.Debug("Meeting bundle saved",
		logging.F("meeting_id", m.ID),
		logging.F("has_transcript", b.Transcript != nil),
		logging.F("has_summary", b.Summary != nil))
	return nil
}
