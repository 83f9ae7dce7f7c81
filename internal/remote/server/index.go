package server

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"dupsync/internal/model"
)

// saveIndex persists the records a run scanned, plus the digest for
// any file that ended up in a duplicate set, into a lightweight
// sqlite file at dbPath. Schema and access pattern are lifted from
// the teacher's sub_app/agent indexer (raw database/sql against
// modernc.org/sqlite, one DELETE+batch-INSERT transaction per save)
// rather than the gorm-backed hashcache used locally: the remote
// server has no long process lifetime to amortize gorm's startup cost
// over, and the teacher keeps exactly this same lighter-weight path
// for its own remote agent's index.
func saveIndex(dbPath string, records []model.FileRecord, digestByPath map[string]string) error {
	if dbPath == "" {
		return nil
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("server: open index %s: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		rel TEXT,
		size INTEGER,
		mod_time INTEGER,
		digest TEXT
	)`); err != nil {
		return fmt.Errorf("server: create index schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("server: begin index tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM files`); err != nil {
		tx.Rollback()
		return fmt.Errorf("server: clear index: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO files(path, rel, size, mod_time, digest) VALUES(?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("server: prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		digestHex := digestByPath[rec.AbsolutePath]
		if _, err := stmt.Exec(rec.AbsolutePath, rec.RelativePath, rec.SizeBytes, rec.ModTime.UnixNano(), digestHex); err != nil {
			tx.Rollback()
			return fmt.Errorf("server: insert index row for %s: %w", rec.AbsolutePath, err)
		}
	}

	return tx.Commit()
}
