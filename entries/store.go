package entries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id    TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	date  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_owner_date ON entries (owner, date);
`

// Store persists entries in a local sqlite database. Every operation is
// scoped to the configured owner, so one database file can serve
// several profiles.
type Store struct {
	db    *sql.DB
	owner string
}

// OpenStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway store.
func OpenStore(path, owner string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open entry store: %w", err)
	}
	// sqlite serializes writers anyway; one connection also keeps
	// :memory: databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init entry store: %w", err)
	}
	return &Store{db: db, owner: owner}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new entry and returns it with a fresh id. ULIDs sort
// by creation time, so id order doubles as insertion order.
func (s *Store) Create(ctx context.Context, title, date string) (*Entry, error) {
	e := &Entry{ID: ulid.Make().String(), Title: title, Date: date}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, owner, title, date) VALUES (?, ?, ?, ?)`,
		e.ID, s.owner, e.Title, e.Date)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// List returns the owner's entries, newest date first, newest entry
// first within a date.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, title, date FROM entries WHERE owner = ? ORDER BY date DESC, id DESC`,
		s.owner)
}

// ListByDate returns the owner's entries for one date, newest first.
func (s *Store) ListByDate(ctx context.Context, date string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, title, date FROM entries WHERE owner = ? AND date = ? ORDER BY id DESC`,
		s.owner, date)
}

// CalendarEvent is the shape calendar widgets consume.
type CalendarEvent struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Date            string `json:"date"`
	BackgroundColor string `json:"backgroundColor"`
	BorderColor     string `json:"borderColor"`
}

// Events renders every entry as a calendar event, newest date first.
func (s *Store) Events(ctx context.Context) ([]CalendarEvent, error) {
	list, err := s.query(ctx,
		`SELECT id, title, date FROM entries WHERE owner = ? ORDER BY date DESC`,
		s.owner)
	if err != nil {
		return nil, err
	}
	events := make([]CalendarEvent, 0, len(list))
	for _, e := range list {
		events = append(events, CalendarEvent{
			ID:              e.ID,
			Title:           e.Title,
			Date:            e.Date,
			BackgroundColor: "#6366f1",
			BorderColor:     "#4f46e5",
		})
	}
	return events, nil
}

// Delete removes one of the owner's entries. Deleting an id that does
// not exist (or belongs to another owner) returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND owner = ?`, id, s.owner)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var list []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Title, &e.Date); err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return list, nil
}
