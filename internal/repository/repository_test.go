package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/teamsheet/internal/database"
	"github.com/blockedby/teamsheet/internal/models"
)

// newTestDB opens a migrated in-memory SQLite database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err, "Failed to open sqlite")
	require.NoError(t, db.AutoMigrate(), "Failed to migrate")
	t.Cleanup(db.Close)

	return db.GORM
}

func seedGroup(t *testing.T, db *gorm.DB) models.Group {
	t.Helper()
	g := models.Group{ID: uuid.New(), Name: "U14 Tryouts"}
	require.NoError(t, db.Create(&g).Error)
	return g
}

func stringPtr(s string) *string {
	return &s
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
