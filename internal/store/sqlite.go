package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// on concurrent vote transactions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err = s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS items (
        id TEXT NOT NULL,
        item_type TEXT NOT NULL CHECK (item_type IN ('system-prompt', 'slash-command', 'agent-skill', 'agent-flow')),
        name TEXT NOT NULL,
        description TEXT DEFAULT '',
        prompt TEXT DEFAULT '',
        command TEXT DEFAULT '',
        config TEXT DEFAULT '',
        tags TEXT DEFAULT '[]',
        author TEXT DEFAULT 'CodingSoft',
        owner_id TEXT NOT NULL DEFAULT '',
        visibility TEXT DEFAULT 'public' CHECK (visibility IN ('public', 'private')),
        rating INTEGER NOT NULL DEFAULT 0,
        rating_count INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        updated_at DATETIME,
        PRIMARY KEY (item_type, id)
    );

    CREATE TABLE IF NOT EXISTS votes (
        item_type TEXT NOT NULL,
        item_id TEXT NOT NULL,
        user_key TEXT NOT NULL,
        value INTEGER NOT NULL CHECK (value IN (-1, 1)),
        updated_at DATETIME NOT NULL,
        PRIMARY KEY (item_type, item_id, user_key)
    );

    CREATE TABLE IF NOT EXISTS hub_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_items_visibility ON items(visibility);
    `
	_, err := s.db.Exec(schema)
	return err
}

const itemColumns = "id, item_type, name, description, prompt, command, config, tags, author, owner_id, visibility, rating, rating_count, created_at, updated_at"

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var tags string
	var updatedAt sql.NullTime
	err := row.Scan(&item.ID, &item.ItemType, &item.Name, &item.Description,
		&item.Prompt, &item.Command, &item.Config, &tags, &item.Author, &item.OwnerID,
		&item.Visibility, &item.Rating, &item.RatingCount, &item.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.Tags = TagsFromString(tags)
	if updatedAt.Valid {
		t := updatedAt.Time
		item.UpdatedAt = &t
	}
	return &item, nil
}

// ListItems returns all items of one type, newest-created first.
func (s *SQLiteStore) ListItems(itemType string) ([]Item, error) {
	if !ValidItemType(itemType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidItemType, itemType)
	}
	rows, err := s.db.Query("SELECT "+itemColumns+" FROM items WHERE item_type = ? ORDER BY created_at DESC, id DESC", itemType)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListItemsByOwner returns all items created under the given owner id,
// across every type, newest-created first. Ownership is keyed on the
// connection-key identity, not the display author.
func (s *SQLiteStore) ListItemsByOwner(ownerID string) ([]Item, error) {
	rows, err := s.db.Query("SELECT "+itemColumns+" FROM items WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items by owner: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem fetches one item. Returns (nil, nil) when nothing matches.
func (s *SQLiteStore) GetItem(itemType, id string) (*Item, error) {
	row := s.db.QueryRow("SELECT "+itemColumns+" FROM items WHERE item_type = ? AND id = ?", itemType, id)
	item, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ItemPatch carries the creatable/updatable fields of an item. For updates,
// zero-valued fields keep the stored value (merge-on-write); Tags replace
// only when non-nil.
type ItemPatch struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Prompt      string          `json:"prompt"`
	Command     string          `json:"command"`
	Config      json.RawMessage `json:"config"`
	Tags        json.RawMessage `json:"tags"`
	Author      string          `json:"author"`
	OwnerID     string          `json:"-"`
	Visibility  string          `json:"visibility"`
}

// configString renders the config payload to its stored form. The payload
// may arrive as a JSON object or as a pre-encoded string.
func (p *ItemPatch) configString() string {
	if len(p.Config) == 0 || string(p.Config) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Config, &s); err == nil {
		return s
	}
	return string(p.Config)
}

// CreateItem inserts a new item, applying defaults: a time-based id when
// none is given, the platform author, and public visibility.
func (s *SQLiteStore) CreateItem(itemType string, patch ItemPatch) (*Item, error) {
	if !ValidItemType(itemType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidItemType, itemType)
	}

	item := &Item{
		ID:          patch.ID,
		ItemType:    itemType,
		Name:        patch.Name,
		Description: patch.Description,
		Prompt:      patch.Prompt,
		Command:     patch.Command,
		Config:      patch.configString(),
		Tags:        NormalizeTags(patch.Tags),
		Author:      patch.Author,
		OwnerID:     patch.OwnerID,
		Visibility:  patch.Visibility,
		CreatedAt:   time.Now().UTC(),
	}
	if item.ID == "" {
		item.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if item.Author == "" {
		item.Author = DefaultAuthor
	}
	if item.Visibility == "" {
		item.Visibility = VisibilityPublic
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	stmt, err := s.db.Prepare(`INSERT INTO items
        (id, item_type, name, description, prompt, command, config, tags, author, owner_id, visibility, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(item.ID, item.ItemType, item.Name, item.Description,
		item.Prompt, item.Command, item.Config, TagsToString(item.Tags),
		item.Author, item.OwnerID, item.Visibility, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute item insert: %w", err)
	}
	return item, nil
}

// UpdateItem merge-updates an item: present, non-empty patch fields
// overwrite; everything else is kept. updated_at always advances, even for
// an empty patch. Returns (nil, nil) when the item does not exist.
func (s *SQLiteStore) UpdateItem(itemType, id string, patch ItemPatch) (*Item, error) {
	existing, err := s.GetItem(itemType, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	merged := *existing
	if patch.Name != "" {
		merged.Name = patch.Name
	}
	if patch.Description != "" {
		merged.Description = patch.Description
	}
	if patch.Prompt != "" {
		merged.Prompt = patch.Prompt
	}
	if patch.Command != "" {
		merged.Command = patch.Command
	}
	if cfg := patch.configString(); cfg != "" {
		merged.Config = cfg
	}
	if patch.Tags != nil {
		merged.Tags = NormalizeTags(patch.Tags)
	}
	if patch.Visibility != "" {
		merged.Visibility = patch.Visibility
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stmt, err := s.db.Prepare(`UPDATE items
        SET name = ?, description = ?, prompt = ?, command = ?, config = ?, tags = ?, visibility = ?, updated_at = ?
        WHERE item_type = ? AND id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare item update: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(merged.Name, merged.Description, merged.Prompt, merged.Command,
		merged.Config, TagsToString(merged.Tags), merged.Visibility, now, itemType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to execute item update: %w", err)
	}
	merged.UpdatedAt = &now
	return &merged, nil
}

// DeleteItem removes an item and its votes. Deleting a missing item is not
// an error; the boolean reports whether a row was removed.
func (s *SQLiteStore) DeleteItem(itemType, id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM items WHERE item_type = ? AND id = ?", itemType, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM votes WHERE item_type = ? AND item_id = ?", itemType, id); err != nil {
		return false, fmt.Errorf("failed to delete item votes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// Vote records userKey's vote on an item and returns the fresh aggregates.
// Toggle detection is server-side: sending the value already on record
// retracts the vote. The whole read-decide-write runs in one transaction and
// the aggregates are recomputed from the full vote set, so concurrent voters
// cannot produce a lost update.
func (s *SQLiteStore) Vote(itemType, id, userKey string, value int) (*VoteResult, error) {
	if value != -1 && value != 0 && value != 1 {
		return nil, ErrInvalidVote
	}
	item, err := s.GetItem(itemType, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin vote: %w", err)
	}
	defer tx.Rollback()

	var prior int
	err = tx.QueryRow("SELECT value FROM votes WHERE item_type = ? AND item_id = ? AND user_key = ?",
		itemType, id, userKey).Scan(&prior)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read prior vote: %w", err)
	}

	final := value
	if prior == value {
		final = 0
	}

	if final == 0 {
		_, err = tx.Exec("DELETE FROM votes WHERE item_type = ? AND item_id = ? AND user_key = ?",
			itemType, id, userKey)
	} else {
		_, err = tx.Exec(`INSERT INTO votes (item_type, item_id, user_key, value, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT (item_type, item_id, user_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			itemType, id, userKey, final, time.Now().UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write vote: %w", err)
	}

	var rating, ratingCount int
	err = tx.QueryRow("SELECT COALESCE(SUM(value), 0), COUNT(*) FROM votes WHERE item_type = ? AND item_id = ?",
		itemType, id).Scan(&rating, &ratingCount)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute rating: %w", err)
	}
	if _, err = tx.Exec("UPDATE items SET rating = ?, rating_count = ? WHERE item_type = ? AND id = ?",
		rating, ratingCount, itemType, id); err != nil {
		return nil, fmt.Errorf("failed to store rating: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return &VoteResult{Rating: rating, RatingCount: ratingCount, UserVote: final}, nil
}

// UserVote returns userKey's current vote on an item, 0 if none was cast.
func (s *SQLiteStore) UserVote(itemType, id, userKey string) (int, error) {
	var value int
	err := s.db.QueryRow("SELECT value FROM votes WHERE item_type = ? AND item_id = ? AND user_key = ?",
		itemType, id, userKey).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query user vote: %w", err)
	}
	return value, nil
}

// meta helpers back the seed-version marker.

func (s *SQLiteStore) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM hub_meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) setMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO hub_meta (key, value) VALUES (?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}
