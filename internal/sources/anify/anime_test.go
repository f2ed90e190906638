package anify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltik/anify-source/internal/config"
	"github.com/eltik/anify-source/internal/locator"
	"github.com/eltik/anify-source/internal/sources"
)

func newTestAnime(t *testing.T, handler http.Handler, opts Options) *Anime {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL
	return NewAnime(opts)
}

func TestAnimeDiscoverOmitsEmptyBuckets(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seasonal", r.URL.Path)
		assert.Equal(t, "anime", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{
			"trending": [{"id":"1","title":{"english":"Naruto"},"averageRating":85,"coverImage":"c.png","currentEpisode":12,"totalEpisodes":220}],
			"seasonal": [{"id":"2","title":{"romaji":"Bleach"},"bannerImage":"b.png"}],
			"top": [],
			"popular": [{"id":"3","title":{"native":"ワンピース"}}]
		}`)
	})

	anime := newTestAnime(t, handler, Options{})
	data, err := anime.Discover(context.Background())
	require.NoError(t, err)

	// "Highest Rated" never appears for an empty top bucket.
	require.Len(t, data, 3)
	assert.Equal(t, "Currently Trending", data[0].Title)
	assert.Equal(t, sources.LayoutCarousel, data[0].Layout)
	assert.Equal(t, "This Season", data[1].Title)
	assert.Equal(t, "Popular", data[2].Title)

	item := data[0].Items[0]
	assert.Equal(t, "Naruto", item.Titles.Primary)
	assert.Equal(t, "85", item.Indicator)
	assert.Equal(t, "c.png", item.Poster)
	assert.Equal(t, 12, item.Current)
	assert.Equal(t, 220, item.Total)

	// Poster falls back to the banner; missing rating displays as "0".
	assert.Equal(t, "b.png", data[1].Items[0].Poster)
	assert.Equal(t, "0", data[1].Items[0].Indicator)
	assert.Equal(t, "No description found.", data[2].Items[0].Description)
}

func TestAnimeSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "anime", r.URL.Query().Get("type"))
		assert.Equal(t, "naruto", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"results":[{"id":"1","title":{"english":"Naruto"},"averageRating":85}],"total":1,"lastPage":3}`)
	})

	anime := newTestAnime(t, handler, Options{})
	result, err := anime.Search(context.Background(), "naruto", 1)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Pages)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Naruto", result.Results[0].Titles.Primary)
	assert.Equal(t, "85", result.Results[0].Indicator)
}

func TestAnimeSearchDefaultsPageCount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	})

	anime := newTestAnime(t, handler, Options{})
	result, err := anime.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)
}

func TestAnimeSearchFatalOnMalformedResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	})

	anime := newTestAnime(t, handler, Options{})
	_, err := anime.Search(context.Background(), "x", 1)
	assert.Error(t, err)
}

func animeInfoHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info/21", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "21",
			"title": {"english": "One Piece", "romaji": "Wan Pisu"},
			"status": "RELEASING",
			"averageRating": 88,
			"mappings": [
				{"providerId": "p1", "providerType": "ANIME"},
				{"providerId": "p2", "providerType": "ANIME"},
				{"providerId": "p3", "providerType": "ANIME"},
				{"providerId": "p4", "providerType": "ANIME"}
			]
		}`)
	})
	mux.HandleFunc("/episodes/21", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"providerId": "p1", "episodes": []},
			{"providerId": "p2", "episodes": [{"id": "e1", "number": 1}]},
			{"providerId": "p3", "episodes": []},
			{"providerId": "p4", "episodes": [{"id": "e2", "number": 1}]}
		]`)
	})
	return mux
}

func TestAnimeInfoSeasonSelection(t *testing.T) {
	anime := newTestAnime(t, animeInfoHandler(t), Options{})
	info, err := anime.Info(context.Background(), anime.catalog.BaseURL()+"/info/21")
	require.NoError(t, err)

	// Only providers with episodes become seasons; the first of those is
	// the default selection.
	require.Len(t, info.Seasons, 2)
	assert.Equal(t, "p2", info.Seasons[0].Name)
	assert.True(t, info.Seasons[0].Selected)
	assert.Equal(t, "21/p2", info.Seasons[0].URL)
	assert.Equal(t, "p4", info.Seasons[1].Name)
	assert.False(t, info.Seasons[1].Selected)

	assert.Equal(t, sources.StatusCurrent, info.Status)
	assert.Equal(t, "One Piece", info.Titles.Primary)
	assert.Equal(t, 2024, info.Year) // absent year defaults
	assert.Equal(t, sources.MediaDataEpisodes, info.MediaKind)
}

func TestAnimeInfoEligibilityModes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info/9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "9",
			"title": {"english": "X"},
			"mappings": [
				{"providerId": "MANGA", "providerType": "MANGA"},
				{"providerId": "zoro", "providerType": "ANIME"}
			]
		}`)
	})
	mux.HandleFunc("/episodes/9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"providerId": "MANGA", "episodes": [{"id": "c1", "number": 1}]},
			{"providerId": "zoro", "episodes": [{"id": "e1", "number": 1}]}
		]`)
	})

	t.Run("observed predicate admits the id/type collision", func(t *testing.T) {
		anime := newTestAnime(t, mux, Options{Eligibility: EligibilityObserved})
		info, err := anime.Info(context.Background(), anime.catalog.BaseURL()+"/info/9")
		require.NoError(t, err)
		require.Len(t, info.Seasons, 2)
		assert.Equal(t, "MANGA", info.Seasons[0].Name)
	})

	t.Run("strict predicate requires the ANIME type", func(t *testing.T) {
		anime := newTestAnime(t, mux, Options{Eligibility: EligibilityStrict})
		info, err := anime.Info(context.Background(), anime.catalog.BaseURL()+"/info/9")
		require.NoError(t, err)
		require.Len(t, info.Seasons, 1)
		assert.Equal(t, "zoro", info.Seasons[0].Name)
	})
}

func TestAnimeMedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes/21", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"providerId": "zoro", "episodes": [
				{"id": "op-1", "number": 1, "title": "Romance Dawn", "img": "t1.png"},
				{"id": "op-2", "number": 2}
			]},
			{"providerId": "other", "episodes": [{"id": "x", "number": 1}]}
		]`)
	})

	anime := newTestAnime(t, mux, Options{})
	lists, err := anime.Media(context.Background(), "21/zoro")
	require.NoError(t, err)

	require.Len(t, lists, 1)
	assert.Equal(t, "zoro", lists[0].Title)
	require.Len(t, lists[0].Pagination, 1)
	assert.Equal(t, "21-zoro", lists[0].Pagination[0].ID)

	items := lists[0].Pagination[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "Romance Dawn", items[0].Title)
	assert.Equal(t, "t1.png", items[0].Thumbnail)
	assert.Equal(t, "Episode 2", items[1].Title)

	// The item URL is a decodable locator reproducing the tuple.
	token, err := locator.Codec{}.Decode(items[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "21", token.EntryID)
	assert.Equal(t, "zoro", token.ProviderID)
	assert.Equal(t, "op-2", token.SubItemID)
	assert.Equal(t, "2", token.Ordinal)
}

func TestAnimeMediaNoMatchIsNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes/21", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"providerId": "other", "episodes": [{"id": "x", "number": 1}]}]`)
	})

	anime := newTestAnime(t, mux, Options{})
	lists, err := anime.Media(context.Background(), "21/zoro")
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestAnimeMediaChunkedPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes/21", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"providerId": "zoro", "episodes": [
			{"id":"e1","number":1},{"id":"e2","number":2},{"id":"e3","number":3},{"id":"e4","number":4},
			{"id":"e5","number":5},{"id":"e6","number":6},{"id":"e7","number":7},{"id":"e8","number":8},
			{"id":"e9","number":9},{"id":"e10","number":10}
		]}]`)
	})

	anime := newTestAnime(t, mux, Options{Pagination: PaginateChunked, ChunkSize: 4})
	lists, err := anime.Media(context.Background(), "21/zoro")
	require.NoError(t, err)

	require.Len(t, lists, 1)
	pages := lists[0].Pagination
	require.Len(t, pages, 3)
	assert.Len(t, pages[0].Items, 4)
	assert.Len(t, pages[1].Items, 4)
	assert.Len(t, pages[2].Items, 2)
	assert.NotEqual(t, pages[0].ID, pages[1].ID)
	assert.NotEqual(t, pages[1].ID, pages[2].ID)
}

func TestAnimeServers(t *testing.T) {
	anime := newTestAnime(t, http.NewServeMux(), Options{})
	lists, err := anime.Servers(context.Background(), "some-locator")
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Anify", lists[0].Title)
	require.Len(t, lists[0].Servers, 1)
	assert.Equal(t, "Default", lists[0].Servers[0].Name)
	assert.Equal(t, "some-locator", lists[0].Servers[0].URL)
}

func TestAnimeStreams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "21", q.Get("id"))
		assert.Equal(t, "zoro", q.Get("providerId"))
		assert.Equal(t, "op-1015", q.Get("watchId"))
		assert.Equal(t, "1015", q.Get("episodeNumber"))
		assert.Equal(t, "sub", q.Get("subType"))
		fmt.Fprint(w, `{
			"sources": [{"url": "https://cdn/stream.m3u8", "quality": "1080p"}],
			"subtitles": [{"url": "https://cdn/en.vtt", "lang": "English"}],
			"intro": {"start": 0, "end": 0},
			"outro": {"start": 1320, "end": 1410}
		}`)
	})

	anime := newTestAnime(t, mux, Options{})
	token, err := locator.Codec{}.Encode(locator.Token{
		EntryID: "21", ProviderID: "zoro", SubItemID: "op-1015", Ordinal: "1015",
	})
	require.NoError(t, err)

	stream, err := anime.Streams(context.Background(), token)
	require.NoError(t, err)

	// Intro window with end == 0 emits no marker; the outro does.
	require.Len(t, stream.Skips, 1)
	assert.Equal(t, "Outro", stream.Skips[0].Title)
	assert.Equal(t, 1320.0, stream.Skips[0].Start)

	require.Len(t, stream.Streams, 1)
	assert.Equal(t, "https://cdn/stream.m3u8", stream.Streams[0].File)
	assert.Equal(t, sources.FormatHLS, stream.Streams[0].Format)

	require.Len(t, stream.Subtitles, 1)
	assert.Equal(t, "English", stream.Subtitles[0].Language)
	assert.Equal(t, sources.SubtitleVTT, stream.Subtitles[0].Format)

	assert.Empty(t, stream.Previews)
}

// A source built from default configuration, the way the host builds
// one, must still send the deployed subType selector on the wire.
func TestAnimeStreamsSubTypeFromDefaultConfig(t *testing.T) {
	cfg, _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	gotSubType := ""
	mux := http.NewServeMux()
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		gotSubType = r.URL.Query().Get("subType")
		fmt.Fprint(w, `{"sources": [], "subtitles": [], "intro": {"start": 0, "end": 0}, "outro": {"start": 0, "end": 0}}`)
	})

	anime := newTestAnime(t, mux, Options{SubtitleType: cfg.Sources.SubtitleType})
	token, err := locator.Codec{}.Encode(locator.Token{
		EntryID: "21", ProviderID: "zoro", SubItemID: "op-1015", Ordinal: "1015",
	})
	require.NoError(t, err)

	_, err = anime.Streams(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sub", gotSubType)
}

func TestAnimeStreamsRejectsCorruptLocator(t *testing.T) {
	anime := newTestAnime(t, http.NewServeMux(), Options{})
	_, err := anime.Streams(context.Background(), "not-a-locator")
	assert.ErrorIs(t, err, locator.ErrMalformedLocator)
}
