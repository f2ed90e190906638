package anify

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/eltik/anify-source/internal/sources"
	"github.com/eltik/anify-source/internal/sources/httpx"
	"github.com/eltik/anify-source/internal/sources/utils"
)

const noDescription = "No description found."

// PaginationPolicy selects how a provider's sub-items are split into
// media pages.
type PaginationPolicy string

const (
	// PaginateSingle emits one page holding every sub-item.
	PaginateSingle PaginationPolicy = "single"
	// PaginateChunked splits sub-items into fixed-size chunks, one page
	// per chunk.
	PaginateChunked PaginationPolicy = "chunked"
)

// EligibilityMode selects the season-eligibility predicate for the video
// pipeline. The deployed encoder compares the provider id against the
// MANGA type constant where a type comparison was evidently intended;
// "observed" keeps that literal behavior, "strict" does the type check.
type EligibilityMode string

const (
	EligibilityObserved EligibilityMode = "observed"
	EligibilityStrict   EligibilityMode = "strict"
)

// Options configures one pipeline instance.
type Options struct {
	BaseURL     string
	HTTP        *httpx.Client
	Logger      *slog.Logger
	Pagination  PaginationPolicy
	ChunkSize   int
	Eligibility EligibilityMode
	// SubtitleType is the subType selector sent to /sources, "sub" or
	// "dub".
	SubtitleType string
}

func (o *Options) fill() {
	if o.BaseURL == "" {
		o.BaseURL = "https://anify.eltik.cc"
	}
	if o.HTTP == nil {
		o.HTTP = httpx.NewClient(httpx.DefaultClientConfig())
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Pagination == "" {
		o.Pagination = PaginateSingle
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 4
	}
	if o.Eligibility == "" {
		o.Eligibility = EligibilityObserved
	}
	if o.SubtitleType == "" {
		o.SubtitleType = "sub"
	}
}

// mapTitles applies the language fallback chains: english first for the
// primary title, romaji first for the secondary.
func mapTitles(t Title) sources.Titles {
	return sources.Titles{
		Primary:   utils.DefaultString(t.English, t.Romaji, t.Native),
		Secondary: utils.DefaultString(t.Romaji, t.Native, t.English),
	}
}

// mapPoster cross-falls between the two image fields, empty when neither
// is set.
func mapPoster(e Entry) string {
	return utils.DefaultString(e.CoverImage, e.BannerImage)
}

// mapIndicator coerces the rating to its display string, "0" when absent.
func mapIndicator(e Entry) string {
	if e.AverageRating == 0 {
		return "0"
	}
	return strconv.FormatFloat(e.AverageRating, 'f', -1, 64)
}

// mapDescription applies the description fallback.
func mapDescription(e Entry) string {
	return utils.DefaultString(e.Description, noDescription)
}

// parseStatus maps the catalog's release status onto the host enum. An
// absent status defaults to NOT_YET_RELEASED before mapping.
func parseStatus(raw string) sources.Status {
	if raw == "" {
		raw = "NOT_YET_RELEASED"
	}
	switch raw {
	case "FINISHED":
		return sources.StatusCompleted
	case "RELEASING":
		return sources.StatusCurrent
	case "NOT_YET_RELEASED":
		return sources.StatusNotReleased
	case "HIATUS":
		return sources.StatusHiatus
	default:
		return sources.StatusUnknown
	}
}

// buildPages applies the pagination policy to a provider's media items.
// Page ids stay distinct across chunks by suffixing the chunk index.
func buildPages(policy PaginationPolicy, chunkSize int, pageID string, items []sources.MediaInfo) []sources.MediaPage {
	if policy != PaginateChunked {
		return []sources.MediaPage{{
			ID:    pageID,
			Title: pageID,
			Items: items,
		}}
	}

	pages := make([]sources.MediaPage, 0, (len(items)+chunkSize-1)/chunkSize)
	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunkID := fmt.Sprintf("%s-%d", pageID, len(pages)+1)
		pages = append(pages, sources.MediaPage{
			ID:    chunkID,
			Title: chunkID,
			Items: items[start:end],
		})
	}
	return pages
}
