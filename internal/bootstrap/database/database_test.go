package database

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"escrutinio/internal/bootstrap/config"
)

func TestOpenCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "store.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := os.Stat(filepath.Dir(dsn)); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("Open() error = nil, want error")
	}
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	type entry struct {
		Name  string `gorm:"primaryKey"`
		Value string
	}

	var buf bytes.Buffer
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "log.sqlite")), &gorm.Config{Logger: gormLogger(&buf)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&entry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	var got entry
	if err := db.Where("name = ?", "missing").First(&got).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First() error = %v, want ErrRecordNotFound", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("logger wrote %q for a missing record", buf.String())
	}
}
