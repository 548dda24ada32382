package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"escrutinio/internal/infrastructure/persistence/sqlite/model"
	"escrutinio/internal/ports"
)

func setupCache(t *testing.T) (*SQLiteCache, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.IngestKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewSQLiteCache(db), db
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	if _, found, err := c.Get(ctx, "last_hash:congreso_votaciones"); err != nil || found {
		t.Fatalf("Get(missing) found = %v, err = %v", found, err)
	}
	if err := c.Set(ctx, "last_hash:congreso_votaciones", "aaa", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, "last_hash:congreso_votaciones", "bbb", 0); err != nil {
		t.Fatalf("Set(overwrite) error = %v", err)
	}
	value, found, err := c.Get(ctx, " last_hash:congreso_votaciones ")
	if err != nil || !found || value != "bbb" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}
	if err := c.Delete(ctx, "last_hash:congreso_votaciones"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, "last_hash:congreso_votaciones"); found {
		t.Fatalf("Get(after delete) found = true")
	}
	if err := c.Set(ctx, "  ", "x", 0); err == nil {
		t.Fatalf("Set(blank key) error = nil")
	}
}

func TestSQLiteCacheJoinsTransaction(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := c.Set(ports.WithTxContext(ctx, tx), "k", "v", 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatalf("value survived rollback")
	}
}
