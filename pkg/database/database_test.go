package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `gorm:"primaryKey"`
	Tags StringArray
}

func TestNewSQLiteMemory(t *testing.T) {
	db, err := New(&Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, AutoMigrate(db, &widget{}))
	require.NoError(t, db.Create(&widget{ID: "w1", Tags: StringArray{"a", "b"}}).Error)

	var got widget
	require.NoError(t, db.First(&got, "id = ?", "w1").Error)
	assert.Equal(t, StringArray{"a", "b"}, got.Tags)
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(&Config{Driver: "oracle"})
	assert.Error(t, err)

	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(&Config{Driver: driver, Host: "localhost", Port: 1, FilePath: ":memory:"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
}
