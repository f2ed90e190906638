package anify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eltik/anify-source/internal/sources/httpx"
)

// seasonalFields mirrors the field projection the deployed clients ask
// the catalog for; changing it changes the wire contract.
const seasonalFields = "[id,description,bannerImage,coverImage,title,genres,format,averageRating,totalEpisodes,totalChapters,year,type]"

// Catalog is the HTTP client for the anify catalog API. Both pipelines
// share one instance; it holds no per-request state.
type Catalog struct {
	baseURL    string
	httpClient *httpx.Client
	logger     *slog.Logger
}

// NewCatalog creates a catalog client rooted at baseURL.
func NewCatalog(baseURL string, httpClient *httpx.Client, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the catalog root.
func (c *Catalog) BaseURL() string {
	return c.baseURL
}

// InfoURL builds the fully-qualified detail URL handed back to the host
// as the info-stage locator.
func (c *Catalog) InfoURL(id string) string {
	return fmt.Sprintf("%s/info/%s", c.baseURL, id)
}

// Seasonal fetches the four curated buckets for the given media kind
// ("anime" or "manga").
func (c *Catalog) Seasonal(ctx context.Context, kind string) (*Seasonal, error) {
	endpoint := fmt.Sprintf("%s/seasonal?type=%s&fields=%s", c.baseURL, kind, seasonalFields)

	var out Seasonal
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("seasonal fetch failed: %w", err)
	}
	return &out, nil
}

// Search runs a paginated catalog search for the given media kind.
func (c *Catalog) Search(ctx context.Context, kind, query string, page int) (*SearchPage, error) {
	endpoint := fmt.Sprintf("%s/search?type=%s&query=%s&page=%d", c.baseURL, kind, url.QueryEscape(query), page)

	var out SearchPage
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &out, nil
}

// Entry fetches one catalog entry from its fully-qualified detail URL.
func (c *Catalog) Entry(ctx context.Context, detailURL string) (*Entry, error) {
	var out Entry
	if err := c.getJSON(ctx, detailURL, &out); err != nil {
		return nil, fmt.Errorf("entry fetch failed: %w", err)
	}
	return &out, nil
}

// Episodes fetches the per-provider episode index for an entry.
func (c *Catalog) Episodes(ctx context.Context, id string) ([]EpisodeIndex, error) {
	endpoint := fmt.Sprintf("%s/episodes/%s", c.baseURL, id)

	var out []EpisodeIndex
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("episode index fetch failed: %w", err)
	}
	return out, nil
}

// Chapters fetches the per-provider chapter index for an entry.
func (c *Catalog) Chapters(ctx context.Context, id string) ([]ChapterIndex, error) {
	endpoint := fmt.Sprintf("%s/chapters/%s", c.baseURL, id)

	var out []ChapterIndex
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("chapter index fetch failed: %w", err)
	}
	return out, nil
}

// Sources fetches the playable sources for one episode.
func (c *Catalog) Sources(ctx context.Context, entryID, providerID, watchID, episodeNumber, subType string) (*SourcePayload, error) {
	endpoint := fmt.Sprintf("%s/sources?id=%s&providerId=%s&watchId=%s&episodeNumber=%s&subType=%s",
		c.baseURL,
		url.QueryEscape(entryID),
		url.QueryEscape(providerID),
		url.QueryEscape(watchID),
		url.QueryEscape(episodeNumber),
		url.QueryEscape(subType),
	)

	var out SourcePayload
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("sources fetch failed: %w", err)
	}
	return &out, nil
}

// Pages fetches the page images for one chapter.
func (c *Catalog) Pages(ctx context.Context, entryID, providerID, readID, chapterNumber string) ([]Page, error) {
	endpoint := fmt.Sprintf("%s/pages?id=%s&providerId=%s&readId=%s&chapterNumber=%s",
		c.baseURL,
		url.QueryEscape(entryID),
		url.QueryEscape(providerID),
		url.QueryEscape(readID),
		url.QueryEscape(chapterNumber),
	)

	var out []Page
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("pages fetch failed: %w", err)
	}
	return out, nil
}

// getJSON performs a GET and decodes the body. A non-parseable response
// is fatal to the caller; there is no retry beyond the transport layer's.
func (c *Catalog) getJSON(ctx context.Context, endpoint string, result interface{}) error {
	resp, err := c.httpClient.Get(ctx, endpoint, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}
	return nil
}
