// ABOUTME: SQLite Snapshotter using modernc.org/sqlite through sqlx
// ABOUTME: Keeps posts, likers and channel message ids in three tables replaced per save

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite stores snapshots in a SQLite database.
type SQLite struct {
	db     *sqlx.DB
	logger *slog.Logger
}

type postRow struct {
	ID      string         `db:"id"`
	Photo   string         `db:"photo"`
	Caption sql.NullString `db:"caption"`
	Likes   int            `db:"likes"`
}

type likeRow struct {
	PostID string `db:"post_id"`
	UserID int64  `db:"user_id"`
}

type messageRow struct {
	PostID    string `db:"post_id"`
	Channel   string `db:"channel"`
	MessageID int    `db:"message_id"`
}

// NewSQLite opens (or creates) the database at path.
// Parent directories are created if needed.
func NewSQLite(path string) (*SQLite, error) {
	logger := slog.Default().With("component", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; saves are already serialized by Store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite backend initialized", "path", path)
	return s, nil
}

func (s *SQLite) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS posts (
			id      TEXT PRIMARY KEY,
			photo   TEXT NOT NULL,
			caption TEXT,
			likes   INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS post_likes (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS post_messages (
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			channel    TEXT NOT NULL,
			message_id INTEGER NOT NULL,
			PRIMARY KEY (post_id, channel)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads every post with its likers and message ids.
func (s *SQLite) Load(ctx context.Context) ([]Record, error) {
	var posts []postRow
	if err := s.db.SelectContext(ctx, &posts, `SELECT id, photo, caption, likes FROM posts`); err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}

	var likes []likeRow
	if err := s.db.SelectContext(ctx, &likes, `SELECT post_id, user_id FROM post_likes`); err != nil {
		return nil, fmt.Errorf("querying likes: %w", err)
	}

	var messages []messageRow
	if err := s.db.SelectContext(ctx, &messages, `SELECT post_id, channel, message_id FROM post_messages`); err != nil {
		return nil, fmt.Errorf("querying message ids: %w", err)
	}

	records := make([]Record, 0, len(posts))
	index := make(map[string]int, len(posts))
	for _, row := range posts {
		rec := Record{
			ID:         row.ID,
			Photo:      row.Photo,
			Likes:      row.Likes,
			LikedUsers: []int64{},
			MessageIDs: map[string]int{},
		}
		if row.Caption.Valid {
			caption := row.Caption.String
			rec.Caption = &caption
		}
		index[row.ID] = len(records)
		records = append(records, rec)
	}

	for _, l := range likes {
		if i, ok := index[l.PostID]; ok {
			records[i].LikedUsers = append(records[i].LikedUsers, l.UserID)
		}
	}
	for _, m := range messages {
		if i, ok := index[m.PostID]; ok {
			records[i].MessageIDs[m.Channel] = m.MessageID
		}
	}

	return records, nil
}

// Save replaces every table's contents with records in one transaction.
func (s *SQLite) Save(ctx context.Context, records []Record) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"post_messages", "post_likes", "posts"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, rec := range records {
		var caption sql.NullString
		if rec.Caption != nil {
			caption = sql.NullString{String: *rec.Caption, Valid: true}
		}

		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO posts (id, photo, caption, likes) VALUES (:id, :photo, :caption, :likes)`,
			postRow{ID: rec.ID, Photo: rec.Photo, Caption: caption, Likes: rec.Likes},
		); err != nil {
			return fmt.Errorf("inserting post %s: %w", rec.ID, err)
		}

		for _, userID := range rec.LikedUsers {
			if _, err = tx.NamedExecContext(ctx,
				`INSERT INTO post_likes (post_id, user_id) VALUES (:post_id, :user_id)`,
				likeRow{PostID: rec.ID, UserID: userID},
			); err != nil {
				return fmt.Errorf("inserting like on %s: %w", rec.ID, err)
			}
		}

		for channel, messageID := range rec.MessageIDs {
			if _, err = tx.NamedExecContext(ctx,
				`INSERT INTO post_messages (post_id, channel, message_id) VALUES (:post_id, :channel, :message_id)`,
				messageRow{PostID: rec.ID, Channel: channel, MessageID: messageID},
			); err != nil {
				return fmt.Errorf("inserting message id of %s in %s: %w", rec.ID, channel, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	s.logger.Info("closing SQLite backend")
	return s.db.Close()
}
