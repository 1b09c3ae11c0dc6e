// Package store persists listings, seekers, photos, matches, and
// conversation history in SQLite. It is the only shared mutable resource in
// the bot; every method is atomic from the caller's point of view.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"estatebot/internal/domain"
)

func init() {
	// modernc's driver registers as "sqlite"; make sure sqlx binds ? params
	// for it regardless of sqlx version.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteStore implements domain.RecordStore.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory %s: %w", dir, err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		property_type    TEXT NOT NULL,
		city             TEXT NOT NULL,
		street           TEXT NOT NULL DEFAULT '',
		street_number    TEXT NOT NULL DEFAULT '',
		rooms            REAL NOT NULL DEFAULT 0,
		size             INTEGER NOT NULL DEFAULT 0,
		floor            INTEGER NOT NULL DEFAULT 0,
		price            INTEGER NOT NULL,
		transaction_side TEXT NOT NULL,
		owner_name       TEXT NOT NULL DEFAULT '',
		owner_phone      TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'available',
		submitted_by     TEXT NOT NULL DEFAULT '',
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, transaction_side);
	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);

	CREATE TABLE IF NOT EXISTS seekers (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		looking_for   TEXT NOT NULL,
		property_type TEXT NOT NULL DEFAULT '',
		city          TEXT NOT NULL DEFAULT '',
		min_rooms     REAL NOT NULL DEFAULT 0,
		max_rooms     REAL NOT NULL DEFAULT 0,
		min_price     INTEGER NOT NULL DEFAULT 0,
		max_price     INTEGER NOT NULL DEFAULT 0,
		min_size      INTEGER NOT NULL DEFAULT 0,
		notes         TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'active',
		submitted_by  TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_seekers_status ON seekers(status, looking_for);

	CREATE TABLE IF NOT EXISTS photos (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id   INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		path         TEXT NOT NULL,
		source_url   TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_photos_listing ON photos(listing_id);

	CREATE TABLE IF NOT EXISTS matches (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		seeker_id  INTEGER NOT NULL REFERENCES seekers(id) ON DELETE CASCADE,
		score      INTEGER NOT NULL,
		status     TEXT NOT NULL DEFAULT 'suggested',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_pair ON matches(listing_id, seeker_id);

	CREATE TABLE IF NOT EXISTS conversations (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		phone     TEXT NOT NULL,
		role      TEXT NOT NULL,
		content   TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_phone ON conversations(phone, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- listings ---

func (s *SQLiteStore) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = domain.ListingAvailable
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO listings (property_type, city, street, street_number, rooms, size, floor,
			price, transaction_side, owner_name, owner_phone, description, status, submitted_by,
			created_at, updated_at)
		VALUES (:property_type, :city, :street, :street_number, :rooms, :size, :floor,
			:price, :transaction_side, :owner_name, :owner_phone, :description, :status, :submitted_by,
			:created_at, :updated_at)`, l)
	if err != nil {
		return 0, fmt.Errorf("store: insert listing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: listing id: %w", err)
	}
	l.ID = id
	return id, nil
}

func (s *SQLiteStore) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	var l domain.Listing
	err := s.db.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get listing: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) QueryListings(ctx context.Context, f domain.ListingFilters) ([]domain.Listing, error) {
	where := []string{"1=1"}
	var args []any

	if f.City != "" {
		where = append(where, "city LIKE ?")
		args = append(args, "%"+f.City+"%")
	}
	if f.Street != "" {
		where = append(where, "street LIKE ?")
		args = append(args, "%"+f.Street+"%")
	}
	if f.Side != "" {
		where = append(where, "transaction_side = ?")
		args = append(args, f.Side)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.MinRooms > 0 {
		where = append(where, "rooms >= ?")
		args = append(args, f.MinRooms)
	}
	if f.MaxRooms > 0 {
		where = append(where, "rooms <= ?")
		args = append(args, f.MaxRooms)
	}
	if f.MinPrice > 0 {
		where = append(where, "price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		where = append(where, "price <= ?")
		args = append(args, f.MaxPrice)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := `SELECT * FROM listings WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC LIMIT ?`

	var out []domain.Listing
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: query listings: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) AvailableListings(ctx context.Context, side domain.TransactionSide) ([]domain.Listing, error) {
	var out []domain.Listing
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM listings WHERE status = ? AND transaction_side = ? ORDER BY id`,
		domain.ListingAvailable, side)
	if err != nil {
		return nil, fmt.Errorf("store: available listings: %w", err)
	}
	return out, nil
}

// --- seekers ---

func (s *SQLiteStore) CreateSeeker(ctx context.Context, sk *domain.Seeker) (int64, error) {
	now := time.Now().UTC()
	sk.CreatedAt = now
	sk.UpdatedAt = now
	if sk.Status == "" {
		sk.Status = domain.SeekerActive
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO seekers (name, phone, looking_for, property_type, city, min_rooms, max_rooms,
			min_price, max_price, min_size, notes, status, submitted_by, created_at, updated_at)
		VALUES (:name, :phone, :looking_for, :property_type, :city, :min_rooms, :max_rooms,
			:min_price, :max_price, :min_size, :notes, :status, :submitted_by, :created_at, :updated_at)`, sk)
	if err != nil {
		return 0, fmt.Errorf("store: insert seeker: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: seeker id: %w", err)
	}
	sk.ID = id
	return id, nil
}

func (s *SQLiteStore) GetSeeker(ctx context.Context, id int64) (*domain.Seeker, error) {
	var sk domain.Seeker
	err := s.db.GetContext(ctx, &sk, `SELECT * FROM seekers WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get seeker: %w", err)
	}
	return &sk, nil
}

func (s *SQLiteStore) QuerySeekers(ctx context.Context, f domain.SeekerFilters) ([]domain.Seeker, error) {
	where := []string{"1=1"}
	var args []any

	if f.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.City != "" {
		where = append(where, "city LIKE ?")
		args = append(args, "%"+f.City+"%")
	}
	if f.LookingFor != "" {
		where = append(where, "looking_for = ?")
		args = append(args, f.LookingFor)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := `SELECT * FROM seekers WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC LIMIT ?`

	var out []domain.Seeker
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: query seekers: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ActiveSeekers(ctx context.Context, want domain.LookingFor) ([]domain.Seeker, error) {
	var out []domain.Seeker
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM seekers WHERE status = ? AND looking_for = ? ORDER BY id`,
		domain.SeekerActive, want)
	if err != nil {
		return nil, fmt.Errorf("store: active seekers: %w", err)
	}
	return out, nil
}

// --- photos ---

func (s *SQLiteStore) AddPhoto(ctx context.Context, p *domain.Photo) error {
	p.CreatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO photos (listing_id, path, source_url, content_type, created_at)
		VALUES (:listing_id, :path, :source_url, :content_type, :created_at)`, p)
	if err != nil {
		return fmt.Errorf("store: insert photo: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		p.ID = id
	}
	return nil
}

func (s *SQLiteStore) PhotoCount(ctx context.Context, listingID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM photos WHERE listing_id = ?`, listingID)
	if err != nil {
		return 0, fmt.Errorf("store: photo count: %w", err)
	}
	return n, nil
}

// --- matches ---

// CreateMatch inserts a suggested match. The unique (listing_id, seeker_id)
// index plus INSERT OR IGNORE suppresses duplicate suggestions for the same
// pair; it reports false when the pair was already recorded.
func (s *SQLiteStore) CreateMatch(ctx context.Context, m *domain.Match) (bool, error) {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = domain.MatchSuggested
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO matches (listing_id, seeker_id, score, status, created_at, updated_at)
		VALUES (:listing_id, :seeker_id, :score, :status, :created_at, :updated_at)`, m)
	if err != nil {
		return false, fmt.Errorf("store: insert match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: match rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return true, nil
}

// --- conversation history ---

func (s *SQLiteStore) AppendConversation(ctx context.Context, e *domain.ConversationEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO conversations (phone, role, content, timestamp)
		VALUES (:phone, :role, :content, :timestamp)`, e)
	if err != nil {
		return fmt.Errorf("store: append conversation: %w", err)
	}
	return nil
}

// RecentConversation returns up to limit entries for a phone, oldest first.
func (s *SQLiteStore) RecentConversation(ctx context.Context, phone string, limit int) ([]domain.ConversationEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []domain.ConversationEntry
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM (
			SELECT * FROM conversations WHERE phone = ? ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent conversation: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ClearConversation(ctx context.Context, phone string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("store: clear conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ConversationCount(ctx context.Context, phone string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM conversations WHERE phone = ?`, phone); err != nil {
		return 0, fmt.Errorf("store: conversation count: %w", err)
	}
	return n, nil
}
