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

// Manga is the reading pipeline against the anify catalog.
type Manga struct {
	opts    Options
	catalog *Catalog
	codec   locator.Codec
	logger  *slog.Logger
}

// NewManga creates the reading source.
func NewManga(opts Options) *Manga {
	opts.fill()
	return &Manga{
		opts:    opts,
		catalog: NewCatalog(opts.BaseURL, opts.HTTP, opts.Logger),
		// The reading token format base64-encodes the entry id too.
		codec:  locator.Codec{EncodeEntryID: true},
		logger: opts.Logger.With("source", "anify-manga"),
	}
}

func (m *Manga) Name() string {
	return "anify-manga"
}

func (m *Manga) Kind() sources.MediaKind {
	return sources.KindBook
}

// Discover fetches the curated buckets and emits one section per
// non-empty bucket.
func (m *Manga) Discover(ctx context.Context) ([]sources.DiscoverSection, error) {
	seasonal, err := m.catalog.Seasonal(ctx, "manga")
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
			Items:  m.mapEntries(bucket.entries),
		})
	}

	return data, nil
}

// Search runs a paginated catalog search.
func (m *Manga) Search(ctx context.Context, query string, page int) (*sources.SearchResults, error) {
	result, err := m.catalog.Search(ctx, "manga", query, page)
	if err != nil {
		return nil, err
	}

	pages := result.LastPage
	if pages == 0 {
		pages = 1
	}

	return &sources.SearchResults{
		Pages:   pages,
		Results: m.mapEntries(result.Results),
	}, nil
}

// Info fetches one entry plus its chapter index and derives the
// selectable seasons.
func (m *Manga) Info(ctx context.Context, url string) (*sources.InfoData, error) {
	entry, err := m.catalog.Entry(ctx, url)
	if err != nil {
		return nil, err
	}

	index, err := m.catalog.Chapters(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	seasons := make([]sources.Season, 0, len(entry.Mappings))
	for _, mapping := range entry.Mappings {
		chapters := chaptersForProvider(index, mapping.ProviderID)
		if len(chapters) == 0 {
			continue
		}
		if mapping.ProviderType != ProviderManga {
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
		MediaKind:   sources.MediaDataChapters,
		Seasons:     seasons,
	}, nil
}

// Media lists the chapters of one season locator ("{entryId}/{providerId}").
func (m *Manga) Media(ctx context.Context, seasonURL string) ([]sources.MediaList, error) {
	parts := strings.SplitN(seasonURL, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid season locator %q", seasonURL)
	}
	id, providerID := parts[0], parts[1]

	index, err := m.catalog.Chapters(ctx, id)
	if err != nil {
		return nil, err
	}

	data := make([]sources.MediaList, 0, 1)
	for _, provider := range index {
		if provider.ProviderID != providerID {
			continue
		}

		items := make([]sources.MediaInfo, 0, len(provider.Chapters))
		for _, ch := range provider.Chapters {
			token, err := m.codec.Encode(locator.Token{
				EntryID:    id,
				ProviderID: provider.ProviderID,
				SubItemID:  ch.ID,
				Ordinal:    utils.FormatNumber(ch.Number),
			})
			if err != nil {
				return nil, fmt.Errorf("encoding chapter locator: %w", err)
			}

			title := ch.Title
			if title == "" {
				title = fmt.Sprintf("Chapter %s", utils.FormatNumber(ch.Number))
			}

			items = append(items, sources.MediaInfo{
				Title:  title,
				Number: ch.Number,
				URL:    token,
			})
		}

		pageID := fmt.Sprintf("%s-%s", id, provider.ProviderID)
		data = append(data, sources.MediaList{
			Title:      provider.ProviderID,
			Pagination: buildPages(m.opts.Pagination, m.opts.ChunkSize, pageID, items),
		})
	}

	if len(data) == 0 {
		raw, _ := json.Marshal(index)
		m.logger.Warn("no chapters matched provider",
			"provider_id", providerID,
			"entry_id", id,
			"index_length", len(index),
			"payload", string(raw),
		)
	}

	return data, nil
}

// Pages resolves one chapter locator into page image URLs, returned
// verbatim.
func (m *Manga) Pages(ctx context.Context, loc string) ([]string, error) {
	token, err := m.codec.Decode(loc)
	if err != nil {
		return nil, err
	}

	pages, err := m.catalog.Pages(ctx, token.EntryID, token.ProviderID, token.SubItemID, token.Ordinal)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(pages))
	for _, page := range pages {
		urls = append(urls, page.URL)
	}
	return urls, nil
}

// HealthCheck probes the catalog root.
func (m *Manga) HealthCheck(ctx context.Context) error {
	_, err := m.opts.HTTP.Get(ctx, m.opts.BaseURL, nil)
	return err
}

// mapEntries normalizes catalog entries into display listings. Reading
// listings carry only the total chapter count.
func (m *Manga) mapEntries(entries []Entry) []sources.DiscoverEntry {
	results := make([]sources.DiscoverEntry, 0, len(entries))
	for _, item := range entries {
		results = append(results, sources.DiscoverEntry{
			URL:         m.catalog.InfoURL(item.ID),
			Titles:      mapTitles(item.Title),
			Description: mapDescription(item),
			Poster:      mapPoster(item),
			Indicator:   mapIndicator(item),
			Total:       item.TotalChapters,
		})
	}
	return results
}

// chaptersForProvider filters the index down to one provider's chapters.
func chaptersForProvider(index []ChapterIndex, providerID string) []Chapter {
	for _, entry := range index {
		if entry.ProviderID == providerID {
			return entry.Chapters
		}
	}
	return nil
}
