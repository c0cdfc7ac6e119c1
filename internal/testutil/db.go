// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cagerack-backend/internal/db"
	"cagerack-backend/internal/model"
)

// NewDB returns a migrated sqlite database in a per-test temp directory.
//
// The pool is capped at one connection, so concurrent callers are
// serialized the way row locks would serialize them on postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cagerack.db")
	gormDB, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// SeedProfessor inserts a professor and returns it.
func SeedProfessor(t *testing.T, gormDB *gorm.DB, name string) model.Professor {
	t.Helper()
	p := model.Professor{Name: name, ColorCode: "#3B82F6"}
	require.NoError(t, gormDB.Create(&p).Error)
	return p
}

// SeedRack inserts a rack row without materializing its cells.
func SeedRack(t *testing.T, gormDB *gorm.DB, name string, rows, columns int) model.Rack {
	t.Helper()
	r := model.Rack{Name: name, Rows: rows, Columns: columns}
	require.NoError(t, gormDB.Create(&r).Error)
	return r
}
