package anify

// Wire types for the anify catalog API. Field names follow the catalog's
// JSON verbatim; normalization into the host display schema happens in
// the mappers.

// Title is the multilingual title block of a catalog entry.
type Title struct {
	English string `json:"english"`
	Romaji  string `json:"romaji"`
	Native  string `json:"native"`
}

// ProviderType gates which mappings are eligible for season derivation.
type ProviderType string

const (
	ProviderAnime ProviderType = "ANIME"
	ProviderManga ProviderType = "MANGA"
)

// Mapping associates a catalog entry with one external content provider.
type Mapping struct {
	ProviderID   string       `json:"providerId"`
	ProviderType ProviderType `json:"providerType"`
}

// Entry is one catalog entry snapshot. It is fetched per request and
// never cached.
type Entry struct {
	ID             string    `json:"id"`
	Title          Title     `json:"title"`
	Description    string    `json:"description"`
	CoverImage     string    `json:"coverImage"`
	BannerImage    string    `json:"bannerImage"`
	AverageRating  float64   `json:"averageRating"`
	Status         string    `json:"status"`
	Year           int       `json:"year"`
	TotalEpisodes  int       `json:"totalEpisodes"`
	TotalChapters  int       `json:"totalChapters"`
	CurrentEpisode int       `json:"currentEpisode"`
	Mappings       []Mapping `json:"mappings"`
}

// Seasonal is the curated landing payload.
type Seasonal struct {
	Trending []Entry `json:"trending"`
	Seasonal []Entry `json:"seasonal"`
	Top      []Entry `json:"top"`
	Popular  []Entry `json:"popular"`
}

// SearchPage is one page of catalog search results.
type SearchPage struct {
	Results  []Entry `json:"results"`
	Total    int     `json:"total"`
	LastPage int     `json:"lastPage"`
}

// Episode is one sub-item of a video provider's index.
type Episode struct {
	ID     string  `json:"id"`
	Number float64 `json:"number"`
	Title  string  `json:"title"`
	Image  string  `json:"img"`
}

// EpisodeIndex is a provider's ordered episode listing.
type EpisodeIndex struct {
	ProviderID string    `json:"providerId"`
	Episodes   []Episode `json:"episodes"`
}

// Chapter is one sub-item of a reading provider's index.
type Chapter struct {
	ID     string  `json:"id"`
	Number float64 `json:"number"`
	Title  string  `json:"title"`
}

// ChapterIndex is a provider's ordered chapter listing.
type ChapterIndex struct {
	ProviderID string    `json:"providerId"`
	Chapters   []Chapter `json:"chapters"`
}

// Timing is a skip window; End == 0 means the window is absent.
type Timing struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SourceFile is one playable file in a sources payload.
type SourceFile struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// SubtitleInfo is one subtitle track in a sources payload.
type SubtitleInfo struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

// SourcePayload is the /sources response for one episode.
type SourcePayload struct {
	Sources   []SourceFile   `json:"sources"`
	Subtitles []SubtitleInfo `json:"subtitles"`
	Intro     Timing         `json:"intro"`
	Outro     Timing         `json:"outro"`
}

// Page is one page image of a chapter.
type Page struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}
