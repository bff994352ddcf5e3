// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"newbusiness/models"
)

// OpenDB returns a migrated sqlite database in the test's temp dir.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SystemUser ensures the system user and returns it.
func SystemUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user, err := models.EnsureSystemUser(db, "")
	require.NoError(t, err)
	return user
}

// Advertiser inserts an advertiser with the given name.
func Advertiser(t *testing.T, db *gorm.DB, name string) *models.Advertiser {
	t.Helper()
	adv := &models.Advertiser{Name: name, LeadStatus: models.LeadStatusNonQualified}
	require.NoError(t, db.Create(adv).Error)
	return adv
}
