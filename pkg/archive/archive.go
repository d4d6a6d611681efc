// Package archive stores exported chat conversations in PostgreSQL so they can
// be listed and searched after the session ends.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// Entry is one archived conversation export.
type Entry struct {
	ID        int64     `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	Body      string    `json:"body"`
	Labels    []string  `json:"labels,omitempty"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Client provides conversation archive operations.
type Client struct {
	db *sql.DB
}

// Open connects to the archive database with lib/pq.
func Open(dsn string) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("archive not configured: %w", mcerrors.ErrValidation)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The CLI archives at most a few conversations per run.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// SaveOption is a functional option for saving entries.
type SaveOption func(*saveOptions)

type saveOptions struct {
	labels    []string
	turnCount int
}

// WithLabels attaches labels to the entry. Labels are lowercased, trimmed and deduplicated.
func WithLabels(labels ...string) SaveOption {
	return func(opts *saveOptions) {
		opts.labels = append(opts.labels, labels...)
	}
}

// WithTurnCount records how many conversation turns the export holds.
func WithTurnCount(n int) SaveOption {
	return func(opts *saveOptions) {
		opts.turnCount = n
	}
}

// normalizeLabels lowercases, trims, drops empties and sorts labels.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Save archives one export and returns the stored entry.
func (c *Client) Save(ctx context.Context, meetingID, title string, format transcript.Format, body string, opts ...SaveOption) (*Entry, error) {
	if meetingID == "" {
		return nil, fmt.Errorf("meeting id is required: %w", mcerrors.ErrValidation)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("export is empty: %w", mcerrors.ErrValidation)
	}

	options := &saveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	entry := &Entry{
		MeetingID: meetingID,
		Title:     title,
		Format:    string(format),
		Body:      body,
		Labels:    normalizeLabels(options.labels),
		TurnCount: options.turnCount,
	}

	query := `
		INSERT INTO conversation_archive (meeting_id, title, format, body, labels, turn_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := c.db.QueryRowContext(ctx, query,
		entry.MeetingID,
		entry.Title,
		entry.Format,
		entry.Body,
		pq.Array(entry.Labels),
		entry.TurnCount,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("archiving conversation: %w", err)
	}

	return entry, nil
}

const selectColumns = `id, meeting_id, title, format, body, labels, turn_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID,
		&e.MeetingID,
		&e.Title,
		&e.Format,
		&e.Body,
		pq.Array(&e.Labels),
		&e.TurnCount,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get retrieves an entry by ID.
func (c *Client) Get(ctx context.Context, id int64) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM conversation_archive WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive entry %d: %w", id, mcerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying archive entry: %w", err)
	}
	return e, nil
}

// ListOptions contains filters for listing entries.
type ListOptions struct {
	MeetingID string
	Labels    []string
	// Query matches entries whose title or body contains it, case-insensitively.
	Query string
	// Since and Until bound created_at when non-zero.
	Since time.Time
	Until time.Time
	Limit int
}

// buildListQuery renders the filtered SELECT and its arguments.
func buildListQuery(opts ListOptions) (string, []any) {
	query := `SELECT ` + selectColumns + ` FROM conversation_archive WHERE TRUE`
	var args []any

	if opts.MeetingID != "" {
		args = append(args, opts.MeetingID)
		query += fmt.Sprintf(" AND meeting_id = $%d", len(args))
	}

	if labels := normalizeLabels(opts.Labels); len(labels) > 0 {
		args = append(args, pq.Array(labels))
		query += fmt.Sprintf(" AND labels @> $%d", len(args))
	}

	if q := strings.TrimSpace(opts.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		query += fmt.Sprintf(" AND (title ILIKE $%d OR body ILIKE $%d)", len(args), len(args))
	}

	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	if !opts.Until.IsZero() {
		args = append(args, opts.Until)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	return query, args
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// List retrieves entries matching the filter criteria, newest first.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	query, args := buildListQuery(opts)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return entries, nil
}

// AddLabels attaches labels to an existing entry.
func (c *Client) AddLabels(ctx context.Context, id int64, labels ...string) error {
	labels = normalizeLabels(labels)
	if len(labels) == 0 {
		return nil
	}

	query := `
		UPDATE conversation_archive
		SET labels = ARRAY(SELECT DISTINCT unnest(labels || $2::text[]) ORDER BY 1)
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, query, id, pq.Array(labels))
	if err != nil {
		return fmt.Errorf("adding labels: %w", err)
	}
	return expectRow(res, id)
}

// Delete removes an entry.
func (c *Client) Delete(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM conversation_archive WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting archive entry: %w", err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("archive entry %d: %w", id, mcerrors.ErrNotFound)
	}
	return nil
}
