package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eltik/anify-source/internal/database"
	"github.com/eltik/anify-source/internal/history"
	"github.com/eltik/anify-source/internal/locator"
	"github.com/eltik/anify-source/internal/sources/anify"
)

func newTestHistory(t *testing.T) *history.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.Progress{}))

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return history.NewService(db)
}

func TestRecordProgressFromVideoLocator(t *testing.T) {
	svc := newTestHistory(t)
	anime := anify.NewAnime(anify.Options{})

	token, err := locator.Codec{}.Encode(locator.Token{
		EntryID: "21", ProviderID: "zoro", SubItemID: "op-1015", Ordinal: "1015",
	})
	require.NoError(t, err)

	recordProgress(svc, anime, token, "One Piece")

	items, err := svc.List(history.FilterOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, token, items[0].Locator)
	assert.Equal(t, "21", items[0].EntryID)
	assert.Equal(t, "One Piece", items[0].EntryTitle)
	assert.Equal(t, "video", items[0].Kind)
	assert.Equal(t, "anify-anime", items[0].SourceName)
	assert.Equal(t, "zoro", items[0].ProviderID)
	assert.Equal(t, "1015", items[0].Ordinal)
}

func TestRecordProgressFromBookLocator(t *testing.T) {
	svc := newTestHistory(t)
	manga := anify.NewManga(anify.Options{})

	token, err := locator.Codec{EncodeEntryID: true}.Encode(locator.Token{
		EntryID: "30013", ProviderID: "mangadex", SubItemID: "ch-1", Ordinal: "1",
	})
	require.NoError(t, err)

	// No title given, the entry id stands in.
	recordProgress(svc, manga, token, "")

	items, err := svc.List(history.FilterOptions{Kind: "book"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "30013", items[0].EntryID)
	assert.Equal(t, "30013", items[0].EntryTitle)
	assert.Equal(t, "anify-manga", items[0].SourceName)
}

func TestRecordProgressSkipsUndecodableLocator(t *testing.T) {
	svc := newTestHistory(t)
	anime := anify.NewAnime(anify.Options{})

	recordProgress(svc, anime, "not-a-locator", "")

	items, err := svc.List(history.FilterOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)
}
