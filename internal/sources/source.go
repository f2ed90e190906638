package sources

import (
	"context"
)

// Source is the capability set every content source exposes to the host.
// The host enumerates sources polymorphically and never inspects the
// opaque URLs/locators it is handed back.
type Source interface {
	// Metadata
	Name() string
	Kind() MediaKind

	// Discovery and search
	Discover(ctx context.Context) ([]DiscoverSection, error)
	Search(ctx context.Context, query string, page int) (*SearchResults, error)

	// Details and listing
	Info(ctx context.Context, url string) (*InfoData, error)
	Media(ctx context.Context, seasonURL string) ([]MediaList, error)

	// Health check
	HealthCheck(ctx context.Context) error
}

// VideoSource is a source that resolves episodes into playable streams.
type VideoSource interface {
	Source
	Servers(ctx context.Context, locator string) ([]ServerList, error)
	Streams(ctx context.Context, locator string) (*MediaStream, error)
}

// BookSource is a source that resolves chapters into page images.
type BookSource interface {
	Source
	Pages(ctx context.Context, locator string) ([]string, error)
}

// MediaKind distinguishes the two pipeline variants.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindBook  MediaKind = "book"
)

// SectionLayout is the layout hint a discover section carries.
type SectionLayout string

const (
	LayoutCarousel SectionLayout = "carousel"
	LayoutGrid     SectionLayout = "grid_2x"
)

// DiscoverSection is one curated bucket from the catalog's landing data.
type DiscoverSection struct {
	Title  string          `json:"title"`
	Layout SectionLayout   `json:"type"`
	Items  []DiscoverEntry `json:"data"`
}

// Titles carries the primary/secondary display titles after language
// fallback has been applied.
type Titles struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// DiscoverEntry is a single listing in a discover section or search page.
type DiscoverEntry struct {
	URL         string `json:"url"`
	Titles      Titles `json:"titles"`
	Description string `json:"description,omitempty"`
	Poster      string `json:"poster"`
	// Indicator is the display string for the rating, "0" when absent.
	Indicator string `json:"indicator"`
	Current   int    `json:"current,omitempty"`
	Total     int    `json:"total,omitempty"`
}

// SearchResults is one page of search output.
type SearchResults struct {
	// Pages is the total page count reported by the catalog, 1 when the
	// response omits it.
	Pages   int             `json:"pages"`
	Results []DiscoverEntry `json:"results"`
}

// Status is the normalized release status of a catalog entry.
type Status string

const (
	StatusCompleted   Status = "COMPLETED"
	StatusCurrent     Status = "CURRENT"
	StatusNotReleased Status = "NOT_RELEASED"
	StatusHiatus      Status = "HIATUS"
	StatusUnknown     Status = "UNKNOWN"
)

// MediaDataKind tells the host whether an entry lists episodes or chapters.
type MediaDataKind string

const (
	MediaDataEpisodes MediaDataKind = "EPISODES"
	MediaDataChapters MediaDataKind = "CHAPTERS"
)

// Season is a selectable provider-scoped view of an entry's sub-items,
// not a broadcast season. Exactly the first eligible season is selected.
type Season struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Selected bool   `json:"selected"`
}

// InfoData is the detail record for one catalog entry.
type InfoData struct {
	Titles      Titles        `json:"titles"`
	AltTitles   []string      `json:"altTitles"`
	Description string        `json:"description"`
	Poster      string        `json:"poster"`
	Banner      string        `json:"banner"`
	Status      Status        `json:"status"`
	Rating      float64       `json:"rating"`
	Year        int           `json:"yearReleased"`
	MediaKind   MediaDataKind `json:"mediaType"`
	Seasons     []Season      `json:"seasons"`
}

// MediaInfo is one listed episode or chapter. URL holds the encoded
// opaque locator for the resolution stage.
type MediaInfo struct {
	Title     string  `json:"title"`
	Number    float64 `json:"number"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// MediaPage is one pagination page of a media listing.
type MediaPage struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Items []MediaInfo `json:"items"`
}

// MediaList is the per-provider media listing handed to the host.
type MediaList struct {
	Title      string      `json:"title"`
	Pagination []MediaPage `json:"pagination"`
}

// ServerEntry is one named server option for an episode.
type ServerEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ServerList groups server options under a display title.
type ServerList struct {
	Title   string        `json:"title"`
	Servers []ServerEntry `json:"sources"`
}

// StreamFormat is the container format of a resolved stream.
type StreamFormat string

const (
	FormatHLS StreamFormat = "hls"
	FormatMP4 StreamFormat = "mp4"
)

// SubtitleFormat is the format of a subtitle track.
type SubtitleFormat string

const (
	SubtitleVTT SubtitleFormat = "vtt"
	SubtitleSRT SubtitleFormat = "srt"
)

// Stream is one playable file.
type Stream struct {
	File    string       `json:"file"`
	Quality string       `json:"quality"`
	Format  StreamFormat `json:"type"`
}

// SubtitleTrack is one subtitle option for a stream.
type SubtitleTrack struct {
	URL      string         `json:"url"`
	Language string         `json:"language"`
	Format   SubtitleFormat `json:"type"`
}

// SkipMarker is a named time range the player may skip (intro/outro).
type SkipMarker struct {
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MediaStream is the fully resolved playable unit.
type MediaStream struct {
	Streams   []Stream        `json:"streams"`
	Subtitles []SubtitleTrack `json:"subtitles"`
	Skips     []SkipMarker    `json:"skips"`
	Previews  []string        `json:"previews"`
}
