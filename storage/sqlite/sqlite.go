// Package sqlite stores posts in a SQLite database using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// Repository is a storage.Repository backed by SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path, ensures its directory
// exists, and runs schema migrations.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a write is in flight; the busy timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	r := &Repository{db: db, now: time.Now}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    content TEXT NOT NULL,
    date TEXT NOT NULL,
    date_sort INTEGER NOT NULL DEFAULT 0,
    tags_json TEXT NOT NULL,
    tags_norm TEXT NOT NULL DEFAULT '[]',
    title_lower TEXT NOT NULL DEFAULT '',
    description_lower TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    slug TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    published INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_date_sort ON posts (date_sort);
CREATE INDEX IF NOT EXISTS posts_published ON posts (published);
`)
	if err != nil {
		return err
	}
	return r.migrate()
}

// Lowercased copies of the searchable fields are computed in Go because
// SQLite's lower() only folds ASCII.
var foldedColumns = []string{
	`tags_norm TEXT NOT NULL DEFAULT '[]'`,
	`title_lower TEXT NOT NULL DEFAULT ''`,
	`description_lower TEXT NOT NULL DEFAULT ''`,
}

// migrate upgrades databases created before the folded columns existed:
// it adds them, fills them from the stored posts, and drops the old
// comma-joined tag index.
func (r *Repository) migrate() error {
	rows, err := r.db.Query(`SELECT name FROM pragma_table_info('posts')`)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	added := false
	for _, def := range foldedColumns {
		name, _, _ := strings.Cut(def, " ")
		if have[name] {
			continue
		}
		if _, err := r.db.Exec(`ALTER TABLE posts ADD COLUMN ` + def); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
		added = true
	}
	if have["tags_index"] {
		if _, err := r.db.Exec(`ALTER TABLE posts DROP COLUMN tags_index`); err != nil {
			return fmt.Errorf("drop tags_index: %w", err)
		}
	}
	if !added {
		return nil
	}
	return r.refold()
}

// refold recomputes the folded columns of every stored post.
func (r *Repository) refold() error {
	rows, err := r.db.Query(`SELECT id, title, description, tags_json FROM posts`)
	if err != nil {
		return err
	}
	var posts []content.Post
	for rows.Next() {
		var p content.Post
		var tagsJSON string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &tagsJSON); err != nil {
			rows.Close()
			return err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
			rows.Close()
			return fmt.Errorf("decode tags of %s: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range posts {
		tagsNorm, err := normalizedTags(p.Tags)
		if err != nil {
			return err
		}
		if _, err := r.db.Exec(`UPDATE posts SET tags_norm = ?, title_lower = ?, description_lower = ? WHERE id = ?`,
			tagsNorm, strings.ToLower(p.Title), strings.ToLower(p.Description), p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

const columns = `id, title, description, content, date, tags_json, image, slug, url, published, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p content.Post) (content.Post, error) {
	args, err := rowArgs(p)
	if err != nil {
		return content.Post{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO posts (id, title, description, content, date, date_sort, tags_json, tags_norm, title_lower, description_lower, image, slug, url, published, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return content.Post{}, storage.ErrConflict
		}
		return content.Post{}, err
	}
	return p, nil
}

func (r *Repository) Get(ctx context.Context, id string) (content.Post, error) {
	return scanPost(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM posts WHERE id = ?`, id))
}

func (r *Repository) Update(ctx context.Context, id string, u content.PostUpdate) (content.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return content.Post{}, err
	}
	defer tx.Rollback()

	p, err := scanPost(tx.QueryRowContext(ctx, `SELECT `+columns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		return content.Post{}, err
	}
	p = u.Apply(p, r.now())
	args, err := rowArgs(p)
	if err != nil {
		return content.Post{}, err
	}
	// rowArgs leads with the id; move it to the WHERE clause.
	if _, err := tx.ExecContext(ctx, `UPDATE posts SET title = ?, description = ?, content = ?, date = ?, date_sort = ?, tags_json = ?, tags_norm = ?, title_lower = ?, description_lower = ?, image = ?, slug = ?, url = ?, published = ?, created_at = ?, updated_at = ?
WHERE id = ?`, append(args[1:], id)...); err != nil {
		return content.Post{}, err
	}
	if err := tx.Commit(); err != nil {
		return content.Post{}, err
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var sortColumns = map[string]string{
	storage.SortDate:      "date_sort",
	storage.SortTitle:     "title_lower",
	storage.SortCreatedAt: "created_at",
	storage.SortUpdatedAt: "updated_at",
}

func (r *Repository) List(ctx context.Context, q storage.Query) (storage.Page, error) {
	q = q.Normalize()
	var where []string
	var args []any
	if q.Published != nil {
		where = append(where, "published = ?")
		args = append(args, boolInt(*q.Published))
	}
	if q.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(posts.tags_norm) WHERE value = ?)")
		args = append(args, content.NormalizeTag(q.Tag))
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		where = append(where, `(instr(title_lower, ?) > 0 OR instr(description_lower, ?) > 0 OR EXISTS (SELECT 1 FROM json_each(posts.tags_norm) WHERE instr(value, ?) > 0))`)
		args = append(args, needle, needle, needle)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+clause, args...).Scan(&total); err != nil {
		return storage.Page{}, err
	}

	dir := "DESC"
	if q.SortOrder == "asc" {
		dir = "ASC"
	}
	query := `SELECT ` + columns + ` FROM posts` + clause +
		` ORDER BY ` + sortColumns[q.SortBy] + ` ` + dir + `, id ` + dir
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Skip())
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.Page{}, err
	}
	defer rows.Close()

	var posts []content.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return storage.Page{}, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, err
	}
	return storage.NewPage(q, posts, total), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (content.Post, error) {
	var p content.Post
	var tagsJSON string
	var published int
	var created, updated int64
	err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Content, &p.Date, &tagsJSON,
		&p.Image, &p.Slug, &p.URL, &published, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Post{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Post{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return content.Post{}, fmt.Errorf("decode tags of %s: %w", p.ID, err)
	}
	p.Published = published == 1
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

// rowArgs returns the insert arguments for p in column order. Tags are kept
// twice: as written for round-tripping and normalized for filtering.
func rowArgs(p content.Post) ([]any, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	tagsNorm, err := normalizedTags(tags)
	if err != nil {
		return nil, err
	}
	var dateSort int64
	if t, err := content.ParseDate(p.Date); err == nil {
		dateSort = t.Unix()
	}
	return []any{
		p.ID, p.Title, p.Description, p.Content, p.Date, dateSort,
		string(tagsJSON), tagsNorm, strings.ToLower(p.Title), strings.ToLower(p.Description),
		p.Image, p.Slug, p.URL, boolInt(p.Published),
		p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(),
	}, nil
}

func normalizedTags(tags []string) (string, error) {
	normalized := make([]string, len(tags))
	for i, t := range tags {
		normalized[i] = content.NormalizeTag(t)
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
