// Package index persists validation output to SQLite: the corpus-wide
// anchor index plus the resolved version and abbreviation tables. The
// store is a byproduct of a run, queried by collation tooling; it is never
// an input to validation itself.
package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tanakhcc/critic-engine/core/sqlite"
	"github.com/tanakhcc/critic-engine/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS anchors (
	id       TEXT NOT NULL,
	document TEXT NOT NULL,
	location TEXT NOT NULL,
	PRIMARY KEY (id, document, location)
);
CREATE TABLE IF NOT EXISTS versions (
	document TEXT    NOT NULL,
	passage  TEXT    NOT NULL,
	version  INTEGER NOT NULL,
	hand     TEXT    NOT NULL DEFAULT '',
	text     TEXT    NOT NULL,
	hash     TEXT    NOT NULL,
	PRIMARY KEY (document, passage, version)
);
CREATE TABLE IF NOT EXISTS abbreviations (
	document TEXT NOT NULL,
	run_id   TEXT NOT NULL,
	surface  TEXT NOT NULL,
	expanded TEXT NOT NULL,
	PRIMARY KEY (document, run_id)
);
CREATE INDEX IF NOT EXISTS versions_by_hash ON versions (hash);
`

// Store writes run output to one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult persists one document's resolved tables in a single
// transaction. Rejected documents are stored too; their partial tables are
// still useful for locating the offending markup.
func (s *Store) SaveResult(ctx context.Context, res *engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var anchorErr error
	res.Anchors.Each(func(id, location string) {
		if anchorErr != nil {
			return
		}
		_, anchorErr = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO anchors (id, document, location) VALUES (?, ?, ?)`,
			id, res.DocumentID, location)
	})
	if anchorErr != nil {
		return fmt.Errorf("storing anchors for %s: %w", res.DocumentID, anchorErr)
	}

	for _, passage := range res.Versions {
		for _, v := range passage.Versions {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO versions (document, passage, version, hand, text, hash)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				res.DocumentID, passage.PassageID, v.Index, v.Hand, v.Text, v.Hash); err != nil {
				return fmt.Errorf("storing version %s/%d: %w", passage.PassageID, v.Index, err)
			}
		}
	}

	for runID, forms := range res.Abbreviations {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO abbreviations (document, run_id, surface, expanded)
			 VALUES (?, ?, ?, ?)`,
			res.DocumentID, runID, forms.Surface, forms.Expanded); err != nil {
			return fmt.Errorf("storing abbreviation %s: %w", runID, err)
		}
	}

	return tx.Commit()
}

// AnchorDocuments returns the documents an anchor id occurs in.
func (s *Store) AnchorDocuments(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT document FROM anchors WHERE id = ? ORDER BY document`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// PassageVersion is one stored version state.
type PassageVersion struct {
	Version int
	Hand    string
	Text    string
	Hash    string
}

// Versions returns the stored version states of one passage in version
// order.
func (s *Store) Versions(ctx context.Context, documentID, passageID string) ([]PassageVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, hand, text, hash FROM versions
		 WHERE document = ? AND passage = ? ORDER BY version`, documentID, passageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PassageVersion
	for rows.Next() {
		var v PassageVersion
		if err := rows.Scan(&v.Version, &v.Hand, &v.Text, &v.Hash); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MatchingStates returns every (document, passage, version) whose
// flattened text hashes to hash. Collation tooling uses this to find
// witnesses sharing a reading.
func (s *Store) MatchingStates(ctx context.Context, hash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document || '/' || passage || '/' || version FROM versions
		 WHERE hash = ? ORDER BY document, passage, version`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
