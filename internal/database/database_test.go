package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/teamsheet/internal/models"
)

func TestNewSQLite_AutoMigrate(t *testing.T) {
	db, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AutoMigrate())
	assert.True(t, db.IsSQLite())
	assert.NoError(t, db.Ping(context.Background()))

	for _, model := range models.All() {
		assert.True(t, db.GORM.Migrator().HasTable(model), "table for %T should exist", model)
	}
}

func TestNew_SQLiteURL(t *testing.T) {
	db, err := New(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.Nil(t, db.Pool)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNew_InvalidPostgresURL(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}
