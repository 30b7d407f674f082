package session

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDBStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store, err := OpenFile(path)
	require.NoError(t, err)

	token, user, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)

	require.NoError(t, store.Save(t.Context(), "tok-1", alice))

	bob := UserSnapshot{ID: 8, Username: "bob", Role: "admin"}
	require.NoError(t, store.Save(t.Context(), "tok-2", bob), "save overwrites")
	require.NoError(t, store.Close())

	// survives a reopen
	store, err = OpenFile(path)
	require.NoError(t, err)

	defer store.Close()

	token, user, err = store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, &bob, user)

	var count int64
	require.NoError(t, store.db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "only the token and user keys are persisted")

	require.NoError(t, store.Clear(t.Context()))
	require.NoError(t, store.Clear(t.Context()), "clearing twice is fine")

	token, user, err = store.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestDBStoreBrokenEntries(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "s.db")), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewDBStore(db)
	require.NoError(t, err)

	t.Run("token without user", func(t *testing.T) {
		require.NoError(t, db.Create(&Entry{Key: KeyToken, Value: "tok"}).Error)

		token, user, err := store.Load(t.Context())
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, user)
	})

	t.Run("undecodable user", func(t *testing.T) {
		require.NoError(t, db.Create(&Entry{Key: KeyUser, Value: "{not json"}).Error)

		_, _, err := store.Load(t.Context())
		require.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("tok", &alice)
	assert.False(t, m.Empty())

	_, user, err := m.Load(t.Context())
	require.NoError(t, err)

	user.Username = "mallory"

	_, again, err := m.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username, "load returns a copy")

	require.NoError(t, m.Clear(t.Context()))
	assert.True(t, m.Empty())
	assert.Equal(t, 1, m.Clears())

	m.SetFail(true)
	require.ErrorIs(t, m.Clear(t.Context()), ErrStoreFailure)
	require.ErrorIs(t, m.Save(t.Context(), "t", alice), ErrStoreFailure)
}
