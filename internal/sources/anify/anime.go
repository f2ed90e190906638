package anify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eltik/anify-source/internal/locator"
	"github.com/eltik/anify-source/internal/sources"
	"github.com/eltik/anify-source/internal/sources/utils"
)

// Anime is the video pipeline against the anify catalog.
type Anime struct {
	opts    Options
	catalog *Catalog
	codec   locator.Codec
	logger  *slog.Logger
}

// NewAnime creates the video source.
func NewAnime(opts Options) *Anime {
	opts.fill()
	return &Anime{
		opts:    opts,
		catalog: NewCatalog(opts.BaseURL, opts.HTTP, opts.Logger),
		// The deployed video token format leaves the entry id raw.
		codec:  locator.Codec{EncodeEntryID: false},
		logger: opts.Logger.With("source", "anify-anime"),
	}
}

func (a *Anime) Name() string {
	return "anify-anime"
}

func (a *Anime) Kind() sources.MediaKind {
	return sources.KindVideo
}

// Discover fetches the curated buckets and emits one section per
// non-empty bucket.
func (a *Anime) Discover(ctx context.Context) ([]sources.DiscoverSection, error) {
	seasonal, err := a.catalog.Seasonal(ctx, "anime")
	if err != nil {
		return nil, err
	}

	data := make([]sources.DiscoverSection, 0, 4)
	buckets := []struct {
		title   string
		layout  sources.SectionLayout
		entries []Entry
	}{
		{"Currently Trending", sources.LayoutCarousel, seasonal.Trending},
		{"This Season", sources.LayoutGrid, seasonal.Seasonal},
		{"Highest Rated", sources.LayoutGrid, seasonal.Top},
		{"Popular", sources.LayoutGrid, seasonal.Popular},
	}

	for _, bucket := range buckets {
		if len(bucket.entries) == 0 {
			continue
		}
		data = append(data, sources.DiscoverSection{
			Title:  bucket.title,
			Layout: bucket.layout,
			Items:  a.mapEntries(bucket.entries),
		})
	}

	return data, nil
}

// Search runs a paginated catalog search.
func (a *Anime) Search(ctx context.Context, query string, page int) (*sources.SearchResults, error) {
	result, err := a.catalog.Search(ctx, "anime", query, page)
	if err != nil {
		return nil, err
	}

	pages := result.LastPage
	if pages == 0 {
		pages = 1
	}

	return &sources.SearchResults{
		Pages:   pages,
		Results: a.mapEntries(result.Results),
	}, nil
}

// Info fetches one entry plus its episode index and derives the
// selectable seasons.
func (a *Anime) Info(ctx context.Context, url string) (*sources.InfoData, error) {
	entry, err := a.catalog.Entry(ctx, url)
	if err != nil {
		return nil, err
	}

	// Second, dependent fetch: the episode index is keyed by the id the
	// entry response just resolved.
	index, err := a.catalog.Episodes(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	seasons := make([]sources.Season, 0, len(entry.Mappings))
	for _, mapping := range entry.Mappings {
		episodes := episodesForProvider(index, mapping.ProviderID)
		if len(episodes) == 0 {
			continue
		}
		if !a.eligible(mapping) {
			continue
		}
		seasons = append(seasons, sources.Season{
			Name:     mapping.ProviderID,
			URL:      fmt.Sprintf("%s/%s", entry.ID, mapping.ProviderID),
			Selected: len(seasons) == 0,
		})
	}

	year := entry.Year
	if year == 0 {
		year = 2024
	}

	return &sources.InfoData{
		Titles:      mapTitles(entry.Title),
		AltTitles:   []string{},
		Description: mapDescription(*entry),
		Poster:      utils.DefaultString(entry.CoverImage, entry.BannerImage),
		Banner:      utils.DefaultString(entry.BannerImage, entry.CoverImage),
		Status:      parseStatus(entry.Status),
		Rating:      entry.AverageRating,
		Year:        year,
		MediaKind:   sources.MediaDataEpisodes,
		Seasons:     seasons,
	}, nil
}

// eligible applies the configured season-eligibility predicate.
func (a *Anime) eligible(mapping Mapping) bool {
	if a.opts.Eligibility == EligibilityStrict {
		return mapping.ProviderType == ProviderAnime
	}
	// Observed deployed behavior: the second leg compares the provider
	// id against the MANGA type constant.
	return mapping.ProviderType == ProviderAnime || mapping.ProviderID == string(ProviderManga)
}

// Media lists the episodes of one season locator ("{entryId}/{providerId}").
func (a *Anime) Media(ctx context.Context, seasonURL string) ([]sources.MediaList, error) {
	parts := strings.SplitN(seasonURL, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid season locator %q", seasonURL)
	}
	id, providerID := parts[0], parts[1]

	index, err := a.catalog.Episodes(ctx, id)
	if err != nil {
		return nil, err
	}

	data := make([]sources.MediaList, 0, 1)
	for _, provider := range index {
		if provider.ProviderID != providerID {
			continue
		}

		items := make([]sources.MediaInfo, 0, len(provider.Episodes))
		for _, ep := range provider.Episodes {
			token, err := a.codec.Encode(locator.Token{
				EntryID:    id,
				ProviderID: provider.ProviderID,
				SubItemID:  ep.ID,
				Ordinal:    utils.FormatNumber(ep.Number),
			})
			if err != nil {
				return nil, fmt.Errorf("encoding episode locator: %w", err)
			}

			title := ep.Title
			if title == "" {
				title = fmt.Sprintf("Episode %s", utils.FormatNumber(ep.Number))
			}

			items = append(items, sources.MediaInfo{
				Title:     title,
				Number:    ep.Number,
				URL:       token,
				Thumbnail: ep.Image,
			})
		}

		pageID := fmt.Sprintf("%s-%s", id, provider.ProviderID)
		data = append(data, sources.MediaList{
			Title:      provider.ProviderID,
			Pagination: buildPages(a.opts.Pagination, a.opts.ChunkSize, pageID, items),
		})
	}

	if len(data) == 0 {
		raw, _ := json.Marshal(index)
		a.logger.Warn("no episodes matched provider",
			"provider_id", providerID,
			"entry_id", id,
			"index_length", len(index),
			"payload", string(raw),
		)
	}

	return data, nil
}

// Servers names the resolution options for one episode locator. The
// direct-API catalog has a single default route.
func (a *Anime) Servers(ctx context.Context, loc string) ([]sources.ServerList, error) {
	return []sources.ServerList{
		{
			Title: "Anify",
			Servers: []sources.ServerEntry{
				{Name: "Default", URL: loc},
			},
		},
	}, nil
}

// Streams resolves one episode locator into playable streams.
func (a *Anime) Streams(ctx context.Context, loc string) (*sources.MediaStream, error) {
	token, err := a.codec.Decode(loc)
	if err != nil {
		return nil, err
	}

	payload, err := a.catalog.Sources(ctx, token.EntryID, token.ProviderID, token.SubItemID, token.Ordinal, a.opts.SubtitleType)
	if err != nil {
		return nil, err
	}

	stream := &sources.MediaStream{
		Streams:   []sources.Stream{},
		Subtitles: []sources.SubtitleTrack{},
		Skips:     []sources.SkipMarker{},
		Previews:  []string{},
	}

	if payload.Intro.End > 0 {
		stream.Skips = append(stream.Skips, sources.SkipMarker{
			Title: "Intro",
			Start: payload.Intro.Start,
			End:   payload.Intro.End,
		})
	}
	if payload.Outro.End > 0 {
		stream.Skips = append(stream.Skips, sources.SkipMarker{
			Title: "Outro",
			Start: payload.Outro.Start,
			End:   payload.Outro.End,
		})
	}

	for _, src := range payload.Sources {
		stream.Streams = append(stream.Streams, sources.Stream{
			File:    src.URL,
			Quality: src.Quality,
			Format:  sources.FormatHLS,
		})
	}

	for _, sub := range payload.Subtitles {
		stream.Subtitles = append(stream.Subtitles, sources.SubtitleTrack{
			URL:      sub.URL,
			Language: sub.Lang,
			Format:   sources.SubtitleVTT,
		})
	}

	return stream, nil
}

// HealthCheck probes the catalog root.
func (a *Anime) HealthCheck(ctx context.Context) error {
	_, err := a.opts.HTTP.Get(ctx, a.opts.BaseURL, nil)
	return err
}

// mapEntries normalizes catalog entries into display listings.
func (a *Anime) mapEntries(entries []Entry) []sources.DiscoverEntry {
	results := make([]sources.DiscoverEntry, 0, len(entries))
	for _, item := range entries {
		results = append(results, sources.DiscoverEntry{
			URL:         a.catalog.InfoURL(item.ID),
			Titles:      mapTitles(item.Title),
			Description: mapDescription(item),
			Poster:      mapPoster(item),
			Indicator:   mapIndicator(item),
			Current:     item.CurrentEpisode,
			Total:       item.TotalEpisodes,
		})
	}
	return results
}

// episodesForProvider filters the index down to one provider's episodes.
func episodesForProvider(index []EpisodeIndex, providerID string) []Episode {
	for _, entry := range index {
		if entry.ProviderID == providerID {
			return entry.Episodes
		}
	}
	return nil
}
