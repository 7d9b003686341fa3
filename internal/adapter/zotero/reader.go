// Package zotero reads bibliographic items from a local Zotero database.
package zotero

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"zotindex/internal/domain"
)

// Fixed identifiers of the Zotero schema.
const (
	AttachmentTypeID = 14
	FieldTitle       = 1
	FieldAbstract    = 2
	FieldExtra       = 16
)

const itemsQuery = `
SELECT
	i.itemID,
	i.key,
	i.itemTypeID,
	CAST(i.dateAdded AS TEXT),
	CAST(i.dateModified AS TEXT),
	(SELECT v.value FROM itemData d JOIN itemDataValues v ON d.valueID = v.valueID
	 WHERE d.itemID = i.itemID AND d.fieldID = ?) AS title,
	(SELECT v.value FROM itemData d JOIN itemDataValues v ON d.valueID = v.valueID
	 WHERE d.itemID = i.itemID AND d.fieldID = ?) AS abstract,
	(SELECT v.value FROM itemData d JOIN itemDataValues v ON d.valueID = v.valueID
	 WHERE d.itemID = i.itemID AND d.fieldID = ?) AS extra,
	(SELECT GROUP_CONCAT(n.note, ' ' ORDER BY n.itemID) FROM itemNotes n
	 WHERE n.parentItemID = i.itemID OR n.itemID = i.itemID) AS notes,
	(SELECT GROUP_CONCAT(
		CASE
			WHEN NULLIF(c.firstName, '') IS NOT NULL AND NULLIF(c.lastName, '') IS NOT NULL
			THEN c.lastName || ', ' || c.firstName
			WHEN NULLIF(c.lastName, '') IS NOT NULL
			THEN c.lastName
			ELSE NULL
		END, '; ' ORDER BY ic.orderIndex)
	 FROM itemCreators ic JOIN creators c ON ic.creatorID = c.creatorID
	 WHERE ic.itemID = i.itemID) AS creators
FROM items i
WHERE i.itemTypeID != ?%s
ORDER BY i.dateModified DESC, i.itemID DESC
LIMIT ?`

// Reader gives read-only access to a Zotero database. It owns a single
// connection and is not safe for concurrent use.
type Reader struct {
	path string
	db   *sql.DB
}

// Open opens the database at path without write access. The caller must
// Close the reader. A missing file yields an error wrapping domain.ErrNotFound.
func Open(ctx context.Context, path string) (*Reader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: Zotero database %s (ensure Zotero is installed and has been run at least once)", domain.ErrNotFound, abs)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrConfiguration, abs)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(abs))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", abs, err)
	}

	return &Reader{path: abs, db: db}, nil
}

// readOnlyDSN builds a SQLite URI that forbids writes both at open time and
// per connection.
func readOnlyDSN(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "mode=ro&_pragma=query_only(1)",
	}
	return u.String()
}

// Path returns the absolute database path.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the connection. Calling it more than once is safe.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// ExtractAll returns non-attachment items, most recently modified first.
// A limit <= 0 returns every item.
func (r *Reader) ExtractAll(ctx context.Context, limit int) ([]domain.ItemRecord, error) {
	return r.query(ctx, "", nil, limit)
}

// ExtractByKey returns the item with the given key, or nil when there is none.
func (r *Reader) ExtractByKey(ctx context.Context, key string) (*domain.ItemRecord, error) {
	items, err := r.query(ctx, " AND i.key = ?", []any{key}, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// SearchNaive returns up to limit items whose searchable text contains query,
// ignoring case. It is a fallback for when no vector index is available.
func (r *Reader) SearchNaive(ctx context.Context, query string, limit int) ([]domain.ItemRecord, error) {
	items, err := r.ExtractAll(ctx, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []domain.ItemRecord
	for _, item := range items {
		if limit > 0 && len(matches) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(item.SearchableText()), needle) {
			matches = append(matches, item)
		}
	}
	return matches, nil
}

// Count returns the number of non-attachment items.
func (r *Reader) Count(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, errClosed
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE itemTypeID != ?`, AttachmentTypeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

var errClosed = errors.New("zotero: reader is closed")

func (r *Reader) query(ctx context.Context, filter string, filterArgs []any, limit int) ([]domain.ItemRecord, error) {
	if r.db == nil {
		return nil, errClosed
	}
	if limit <= 0 {
		limit = -1
	}

	args := []any{FieldTitle, FieldAbstract, FieldExtra, AttachmentTypeID}
	args = append(args, filterArgs...)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(itemsQuery, filter), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemRecord
	for rows.Next() {
		var (
			item                                domain.ItemRecord
			added, modified                     sql.NullString
			title, abstract, extra, notes, crea sql.NullString
		)
		if err := rows.Scan(&item.InternalID, &item.Key, &item.TypeID, &added, &modified,
			&title, &abstract, &extra, &notes, &crea); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.DateAdded = added.String
		item.DateModified = modified.String
		item.Title = title.String
		item.Abstract = abstract.String
		item.Extra = extra.String
		item.Notes = notes.String
		item.Creators = crea.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return items, nil
}
