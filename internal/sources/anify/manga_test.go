package anify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltik/anify-source/internal/locator"
	"github.com/eltik/anify-source/internal/sources"
)

func newTestManga(t *testing.T, handler http.Handler, opts Options) *Manga {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL
	return NewManga(opts)
}

func TestMangaDiscover(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seasonal", r.URL.Path)
		assert.Equal(t, "manga", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{
			"trending": [{"id":"30013","title":{"english":"One Piece"},"averageRating":92,"totalChapters":1100}],
			"seasonal": [],
			"top": [],
			"popular": []
		}`)
	})

	manga := newTestManga(t, handler, Options{})
	data, err := manga.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, data, 1)
	assert.Equal(t, "Currently Trending", data[0].Title)

	item := data[0].Items[0]
	assert.Equal(t, "One Piece", item.Titles.Primary)
	assert.Equal(t, "92", item.Indicator)
	// Reading listings carry only the chapter total.
	assert.Equal(t, 1100, item.Total)
	assert.Zero(t, item.Current)
}

func TestMangaInfoRequiresMangaProviderType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info/30013", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "30013",
			"title": {"english": "One Piece"},
			"status": "RELEASING",
			"year": 1997,
			"mappings": [
				{"providerId": "mangadex", "providerType": "MANGA"},
				{"providerId": "zoro", "providerType": "ANIME"},
				{"providerId": "comick", "providerType": "MANGA"}
			]
		}`)
	})
	mux.HandleFunc("/chapters/30013", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"providerId": "mangadex", "chapters": [{"id": "c1", "number": 1}]},
			{"providerId": "zoro", "chapters": [{"id": "z1", "number": 1}]},
			{"providerId": "comick", "chapters": [{"id": "k1", "number": 1}]}
		]`)
	})

	manga := newTestManga(t, mux, Options{})
	info, err := manga.Info(context.Background(), manga.catalog.BaseURL()+"/info/30013")
	require.NoError(t, err)

	// The ANIME-typed mapping is never a reading season, even with
	// chapters present.
	require.Len(t, info.Seasons, 2)
	assert.Equal(t, "mangadex", info.Seasons[0].Name)
	assert.True(t, info.Seasons[0].Selected)
	assert.Equal(t, "comick", info.Seasons[1].Name)
	assert.False(t, info.Seasons[1].Selected)

	assert.Equal(t, 1997, info.Year)
	assert.Equal(t, sources.MediaDataChapters, info.MediaKind)
}

func TestMangaMediaEncodesEntryID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chapters/30013", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"providerId": "mangadex", "chapters": [
			{"id": "ch-1", "number": 1, "title": "Romance Dawn"},
			{"id": "ch-1050", "number": 1050.5}
		]}]`)
	})

	manga := newTestManga(t, mux, Options{})
	lists, err := manga.Media(context.Background(), "30013/mangadex")
	require.NoError(t, err)

	require.Len(t, lists, 1)
	items := lists[0].Pagination[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "Romance Dawn", items[0].Title)
	assert.Equal(t, "Chapter 1050.5", items[1].Title)

	// The reading token format base64-encodes all three identifiers.
	codec := locator.Codec{EncodeEntryID: true}
	token, err := codec.Decode(items[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "30013", token.EntryID)
	assert.Equal(t, "mangadex", token.ProviderID)
	assert.Equal(t, "ch-1050", token.SubItemID)
	assert.Equal(t, "1050.5", token.Ordinal)
}

func TestMangaMediaNoMatchIsNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chapters/30013", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	manga := newTestManga(t, mux, Options{})
	lists, err := manga.Media(context.Background(), "30013/mangadex")
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestMangaPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pages", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "30013", q.Get("id"))
		assert.Equal(t, "mangadex", q.Get("providerId"))
		assert.Equal(t, "ch-1", q.Get("readId"))
		assert.Equal(t, "1", q.Get("chapterNumber"))
		fmt.Fprint(w, `[
			{"url": "https://cdn/p1.jpg", "index": 0},
			{"url": "https://cdn/p2.jpg", "index": 1}
		]`)
	})

	manga := newTestManga(t, mux, Options{})
	token, err := locator.Codec{EncodeEntryID: true}.Encode(locator.Token{
		EntryID: "30013", ProviderID: "mangadex", SubItemID: "ch-1", Ordinal: "1",
	})
	require.NoError(t, err)

	pages, err := manga.Pages(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/p1.jpg", "https://cdn/p2.jpg"}, pages)
}

func TestMangaPagesRejectsCorruptLocator(t *testing.T) {
	manga := newTestManga(t, http.NewServeMux(), Options{})
	_, err := manga.Pages(context.Background(), "b@d")
	assert.ErrorIs(t, err, locator.ErrMalformedLocator)
}
