// Package store persists the Gemini API key and the browsing history on SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// SettingGeminiAPIKey is the settings key holding the user's Gemini API key.
const SettingGeminiAPIKey = "geminiApiKey"

// ErrNotFound is returned when a product id has no saved record.
var ErrNotFound = errors.New("product not found")

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT '{}',
	about TEXT NOT NULL DEFAULT '[]',
	link TEXT NOT NULL DEFAULT '',
	co2_value REAL NOT NULL,
	concise_title TEXT NOT NULL,
	concise_description TEXT NOT NULL,
	model TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_saved_at ON products(saved_at);
`

// SavedProduct is a product together with its estimate, as kept in history.
type SavedProduct struct {
	Product domain.Product          `json:"product"`
	Result  domain.EnrichmentResult `json:"result"`
	SavedAt time.Time               `json:"savedAt"`
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for saved_at and updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Setting returns the value stored under key. ok is false when the key is unset.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// GeminiAPIKey returns the stored key, or "" when none was saved.
func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	key, _, err := s.Setting(ctx, SettingGeminiAPIKey)
	return key, err
}

// SetGeminiAPIKey stores the user's key.
func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrMissingAPIKey
	}
	return s.SetSetting(ctx, SettingGeminiAPIKey, key)
}

// SaveProduct records p unless a product with the same id is already saved.
// inserted reports whether a new row was written.
func (s *Store) SaveProduct(ctx context.Context, p domain.Product, r domain.EnrichmentResult) (inserted bool, err error) {
	if p.ID == "" {
		return false, errors.New("save product: id is required")
	}

	details, err := json.Marshal(nonNilDetails(p.Details))
	if err != nil {
		return false, fmt.Errorf("save product %s: encode details: %w", p.ID, err)
	}
	about, err := json.Marshal(nonNilAbout(p.About))
	if err != nil {
		return false, fmt.Errorf("save product %s: encode about: %w", p.ID, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, title, description, details, about, link,
			co2_value, concise_title, concise_description, model, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.Title, p.Description, string(details), string(about), p.Link,
		r.CO2Value, r.ConciseTitle, r.ConciseDescription, r.ModelUsed, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("save product %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return n > 0, nil
}

// HasProduct reports whether id is already in history.
func (s *Store) HasProduct(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup product %s: %w", id, err)
	}
	return true, nil
}

const productColumns = `id, title, description, details, about, link,
	co2_value, concise_title, concise_description, model, saved_at`

// GetProduct returns the saved record for id, or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (SavedProduct, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	sp, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedProduct{}, ErrNotFound
	}
	if err != nil {
		return SavedProduct{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return sp, nil
}

// ListProducts returns the whole history, oldest first.
func (s *Store) ListProducts(ctx context.Context) ([]SavedProduct, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY saved_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []SavedProduct
	for rows.Next() {
		sp, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (SavedProduct, error) {
	var (
		sp      SavedProduct
		details string
		about   string
		savedAt int64
	)
	err := row.Scan(
		&sp.Product.ID, &sp.Product.Title, &sp.Product.Description, &details, &about, &sp.Product.Link,
		&sp.Result.CO2Value, &sp.Result.ConciseTitle, &sp.Result.ConciseDescription, &sp.Result.ModelUsed,
		&savedAt,
	)
	if err != nil {
		return SavedProduct{}, err
	}
	if err := json.Unmarshal([]byte(details), &sp.Product.Details); err != nil {
		return SavedProduct{}, fmt.Errorf("decode details: %w", err)
	}
	if err := json.Unmarshal([]byte(about), &sp.Product.About); err != nil {
		return SavedProduct{}, fmt.Errorf("decode about: %w", err)
	}
	sp.SavedAt = time.UnixMilli(savedAt).UTC()
	return sp, nil
}

func nonNilDetails(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilAbout(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
