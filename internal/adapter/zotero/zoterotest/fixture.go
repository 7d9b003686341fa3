// Package zoterotest builds small Zotero databases for tests.
package zoterotest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Creator is one author of a fixture item.
type Creator struct {
	First string
	Last  string
}

// Item describes one row of the items table plus its related rows.
type Item struct {
	ID           int64
	Key          string
	TypeID       int
	Title        string
	Abstract     string
	Extra        string
	Creators     []Creator
	Notes        []string
	DateAdded    string
	DateModified string
}

const schema = `
CREATE TABLE items (
	itemID INTEGER PRIMARY KEY,
	itemTypeID INT NOT NULL,
	dateAdded TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	dateModified TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	libraryID INT NOT NULL DEFAULT 1,
	key TEXT NOT NULL,
	UNIQUE (libraryID, key)
);
CREATE TABLE itemDataValues (valueID INTEGER PRIMARY KEY, value UNIQUE);
CREATE TABLE itemData (
	itemID INT,
	fieldID INT,
	valueID,
	PRIMARY KEY (itemID, fieldID)
);
CREATE TABLE itemNotes (
	itemID INTEGER PRIMARY KEY,
	parentItemID INT,
	note TEXT,
	title TEXT
);
CREATE TABLE creators (
	creatorID INTEGER PRIMARY KEY,
	firstName TEXT,
	lastName TEXT,
	fieldMode INT
);
CREATE TABLE itemCreators (
	itemID INT NOT NULL,
	creatorID INT NOT NULL,
	creatorTypeID INT NOT NULL DEFAULT 1,
	orderIndex INT NOT NULL DEFAULT 0,
	PRIMARY KEY (itemID, creatorTypeID, orderIndex)
);
`

// Build writes a database containing items to dir and returns its path.
// Notes are stored as child note rows with ids above every item id.
func Build(t testing.TB, dir string, items []Item) string {
	t.Helper()

	path := filepath.Join(dir, "zotero.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	var nextValue, nextCreator int64
	nextNote := int64(100000)
	values := map[string]int64{}
	valueID := func(v string) int64 {
		if id, ok := values[v]; ok {
			return id
		}
		nextValue++
		values[v] = nextValue
		mustExec(t, db, `INSERT INTO itemDataValues(valueID, value) VALUES (?, ?)`, nextValue, v)
		return nextValue
	}

	for _, it := range items {
		added := it.DateAdded
		if added == "" {
			added = "2024-01-01 00:00:00"
		}
		modified := it.DateModified
		if modified == "" {
			modified = added
		}
		mustExec(t, db, `INSERT INTO items(itemID, itemTypeID, dateAdded, dateModified, key) VALUES (?, ?, ?, ?, ?)`,
			it.ID, it.TypeID, added, modified, it.Key)

		for fieldID, v := range map[int]string{1: it.Title, 2: it.Abstract, 16: it.Extra} {
			if v == "" {
				continue
			}
			mustExec(t, db, `INSERT INTO itemData(itemID, fieldID, valueID) VALUES (?, ?, ?)`, it.ID, fieldID, valueID(v))
		}

		for i, c := range it.Creators {
			nextCreator++
			mustExec(t, db, `INSERT INTO creators(creatorID, firstName, lastName, fieldMode) VALUES (?, ?, ?, 0)`,
				nextCreator, c.First, c.Last)
			mustExec(t, db, `INSERT INTO itemCreators(itemID, creatorID, orderIndex) VALUES (?, ?, ?)`,
				it.ID, nextCreator, i)
		}

		for _, note := range it.Notes {
			nextNote++
			mustExec(t, db, `INSERT INTO itemNotes(itemID, parentItemID, note, title) VALUES (?, ?, ?, '')`,
				nextNote, it.ID, note)
		}
	}

	return path
}

func mustExec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
