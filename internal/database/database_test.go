package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/rylac/internal/database"
	"github.com/thereayou/rylac/internal/database/dbtest"
	"github.com/thereayou/rylac/internal/models"
	"gorm.io/driver/sqlite"
)

func seedUser(t *testing.T, db *database.Database, id, username string) *models.User {
	t.Helper()
	u := &models.User{
		UserID:       id,
		Username:     username,
		DisplayName:  username,
		PasswordHash: "hash",
		PasswordSalt: "salt",
		Role:         models.RoleUser,
		Theme:        models.ThemeLight,
	}
	require.NoError(t, db.SaveUser(context.Background(), u))
	return u
}

func seedMessages(t *testing.T, db *database.Database, from, to string, n int, start time.Time) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		m := models.Message{
			ConversationID: models.ConversationID(from, to),
			SenderID:       from,
			ReceiverID:     to,
			Type:           models.MessageText,
			Content:        fmt.Sprintf("msg %d", i),
			CreatedAt:      start.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.SaveMessage(context.Background(), &m))
		out = append(out, m)
	}
	return out
}

func TestConversationPaging(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sent := seedMessages(t, db, "10000001", "10000002", 5, start)
	conv := models.ConversationID("10000001", "10000002")

	page, err := db.GetConversationMessages(ctx, conv, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, sent[4].ID, page[0].ID)
	assert.Equal(t, sent[2].ID, page[2].ID)

	oldest := page[2].ID
	page, err = db.GetConversationMessages(ctx, conv, 3, &oldest)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, sent[1].ID, page[0].ID)
	assert.Equal(t, sent[0].ID, page[1].ID)
}

func TestConversationPagingSameTimestamp(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var inserted []models.Message
	for i := 0; i < 4; i++ {
		inserted = append(inserted, seedMessages(t, db, "10000001", "10000002", 1, at)...)
	}
	conv := models.ConversationID("10000001", "10000002")

	seen := map[string]bool{}
	first, err := db.GetConversationMessages(ctx, conv, 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	cursor := first[1].ID
	second, err := db.GetConversationMessages(ctx, conv, 2, &cursor)
	require.NoError(t, err)
	require.Len(t, second, 2)

	all := append(first, second...)
	for i, m := range all {
		assert.False(t, seen[m.ID.String()], "duplicate %s", m.ID)
		seen[m.ID.String()] = true
		// при равном времени новее тот, кто вставлен позже
		assert.Equal(t, inserted[len(inserted)-1-i].ID, m.ID)
	}
}

func TestConversationPagingExactlyLimit(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")

	sent := seedMessages(t, db, "10000001", "10000002", 3, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	conv := models.ConversationID("10000001", "10000002")

	page, err := db.GetConversationMessages(ctx, conv, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)

	oldest := page[2].ID
	assert.Equal(t, sent[0].ID, oldest)
	page, err = db.GetConversationMessages(ctx, conv, 3, &oldest)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestOpenResetsPersistedPresence(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	first, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, first.SetMaxOpenConns(1))
	t.Cleanup(func() { _ = first.Close() })

	ctx := context.Background()
	seedUser(t, first, "10000001", "alice")
	require.NoError(t, first.SetPresence(ctx, "10000001", true, time.Now().UTC()))

	// второй Open на той же базе это рестарт процесса
	restarted, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, restarted.SetMaxOpenConns(1))
	t.Cleanup(func() { _ = restarted.Close() })

	u, err := restarted.GetUser(ctx, "10000001")
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
}

func TestMarkConversationRead(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")
	seedMessages(t, db, "10000001", "10000002", 3, time.Now().UTC())
	seedMessages(t, db, "10000002", "10000001", 2, time.Now().UTC())
	conv := models.ConversationID("10000001", "10000002")

	n, err := db.MarkConversationRead(ctx, conv, "10000002")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = db.MarkConversationRead(ctx, conv, "10000002")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// сообщения, отправленные самим читателем, не трогаются
	page, err := db.GetConversationMessages(ctx, conv, 10, nil)
	require.NoError(t, err)
	for _, m := range page {
		assert.Equal(t, m.ReceiverID == "10000002", m.IsRead, m.Content)
	}
}

func TestSoftDeleteMessage(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")

	m := models.Message{
		ConversationID: models.ConversationID("10000001", "10000002"),
		SenderID:       "10000001",
		ReceiverID:     "10000002",
		Type:           models.MessageImage,
		Content:        "[image]",
		MediaURL:       "https://cdn.example.com/a.png",
		MediaMimeType:  "image/png",
		MediaSize:      100,
	}
	require.NoError(t, db.SaveMessage(ctx, &m))

	changed, err := db.SoftDeleteMessage(ctx, m.ID, "10000002")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = db.SoftDeleteMessage(ctx, m.ID, "10000001")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = db.SoftDeleteMessage(ctx, m.ID, "10000001")
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := db.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assert.Equal(t, models.Tombstone, stored.Content)
	assert.Empty(t, stored.MediaURL)
	assert.Zero(t, stored.MediaSize)
	assert.Equal(t, models.MessageImage, stored.Type)
	assert.True(t, m.CreatedAt.Equal(stored.CreatedAt))
}

func TestRefreshTokenEviction(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")

	base := time.Now().UTC()
	for i := 0; i < 7; i++ {
		tok := &models.RefreshToken{
			UserID:    "10000001",
			TokenHash: fmt.Sprintf("hash-%d", i),
			ExpiresAt: base.Add(time.Hour),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.SaveRefreshToken(ctx, tok, 5))
	}

	for i := 0; i < 7; i++ {
		ok, err := db.RefreshTokenActive(ctx, "10000001", fmt.Sprintf("hash-%d", i))
		require.NoError(t, err)
		assert.Equal(t, i >= 2, ok, "hash-%d", i)
	}

	require.NoError(t, db.DeleteRefreshToken(ctx, "10000001", "hash-6"))
	ok, err := db.RefreshTokenActive(ctx, "10000001", "hash-6")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecentContacts(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")
	seedUser(t, db, "10000003", "carol")

	now := time.Now().UTC()
	seedMessages(t, db, "10000002", "10000001", 3, now.Add(-time.Hour))
	seedMessages(t, db, "10000001", "10000003", 1, now)

	contacts, err := db.RecentContacts(ctx, "10000001", 50)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, "10000003", contacts[0].User.UserID)
	assert.EqualValues(t, 0, contacts[0].UnreadCount)
	assert.Equal(t, "10000002", contacts[1].User.UserID)
	assert.EqualValues(t, 3, contacts[1].UnreadCount)
	assert.Equal(t, "msg 2", contacts[1].LastMessage.Content)
}

func TestUpdateProfileKeepsPresence(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")

	seen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetPresence(ctx, "10000001", true, seen))

	u, err := db.UpdateProfile(ctx, "10000001", map[string]interface{}{
		"display_name": "Alice",
		"is_online":    false,
		"role":         models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.True(t, u.IsOnline)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err = db.UpdateProfile(ctx, "99999999", map[string]interface{}{"bio": "x"})
	assert.True(t, database.IsNotFound(err))
}

func TestDeleteUserCascade(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "bob")
	seedMessages(t, db, "10000001", "10000002", 2, time.Now().UTC())

	require.NoError(t, db.DeleteUser(ctx, "10000002"))

	exists, err := db.UserExists(ctx, "10000002")
	require.NoError(t, err)
	assert.False(t, exists)

	page, err := db.GetConversationMessages(ctx, models.ConversationID("10000001", "10000002"), 10, nil)
	require.NoError(t, err)
	assert.Empty(t, page)

	err = db.DeleteUser(ctx, "10000002")
	assert.True(t, database.IsNotFound(err))
}

func TestSearchUsers(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	seedUser(t, db, "10000001", "alice")
	seedUser(t, db, "10000002", "alina")
	seedUser(t, db, "10000003", "bob")

	users, err := db.SearchUsers(ctx, "ali", "10000001", 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alina", users[0].Username)

	users, err = db.SearchUsers(ctx, "10000003", "10000001", 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)

	found, err := db.FindUser(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, "10000003", found.UserID)
}
