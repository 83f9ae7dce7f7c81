// Package hashcache implements C3: a content-addressed memoization
// layer keyed by absolute path, backed by gorm+sqlite the way the
// teacher's devsync file cache is, so digests survive across runs and
// are automatically invalidated on size/mtime change.
package hashcache

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dupsync/internal/model"
)

// row is the persisted shape of a model.CacheEntry. SQLite's own
// journal gives us crash-atomicity for free: a partially written
// transaction is rolled back on next open rather than read back as a
// valid row, which is what spec.md §4.3 requires of the on-disk
// format.
type row struct {
	ID        uint `gorm:"primarykey"`
	Path      string `gorm:"uniqueIndex;not null"`
	Size      int64  `gorm:"not null"`
	ModTimeNS int64  `gorm:"not null"`
	Algorithm string `gorm:"not null;index"`
	DigestHex string `gorm:"not null"`
	UpdatedAt time.Time
}

func (row) TableName() string { return "hash_cache" }

// Cache is safe for concurrent use: gorm/sqlite serializes writers
// internally and reads don't block on each other.
type Cache struct {
	db *gorm.DB
}

// Open creates or opens the cache database at dbPath, migrating the
// schema if needed.
func Open(dbPath string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("hashcache: open %s: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, fmt.Errorf("hashcache: migrate %s: %w", dbPath, err)
	}
	return &Cache{db: db}, nil
}

// Lookup returns the cached digest for rec under algo iff a stored
// entry's size and mtime still match the live file; a mismatch
// discards nothing by itself (Store will overwrite it on the next
// successful hash) but reports a cache miss.
func (c *Cache) Lookup(rec model.FileRecord, algo model.Algorithm) (model.Digest, bool) {
	var r row
	err := c.db.Where("path = ? AND algorithm = ?", rec.AbsolutePath, string(algo)).First(&r).Error
	if err != nil {
		return model.Digest{}, false
	}
	if r.Size != rec.SizeBytes || r.ModTimeNS != rec.ModTime.UnixNano() {
		return model.Digest{}, false
	}
	b, err := hex.DecodeString(r.DigestHex)
	if err != nil {
		return model.Digest{}, false
	}
	return model.Digest{Algorithm: algo, Bytes: b}, true
}

// Store unconditionally upserts the entry for rec under digest's
// algorithm.
func (c *Cache) Store(rec model.FileRecord, digest model.Digest) error {
	r := row{
		Path:      rec.AbsolutePath,
		Size:      rec.SizeBytes,
		ModTimeNS: rec.ModTime.UnixNano(),
		Algorithm: string(digest.Algorithm),
		DigestHex: hex.EncodeToString(digest.Bytes),
	}
	return c.db.Where("path = ? AND algorithm = ?", r.Path, r.Algorithm).
		Assign(r).
		FirstOrCreate(&r).Error
}

// Reset discards every cached entry. Discarding the cache must never
// change correctness, only performance. No command-line flag calls it.
func (c *Cache) Reset() error {
	return c.db.Unscoped().Where("1 = 1").Delete(&row{}).Error
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
