// Package extractors dispatches decoded embed URLs to per-host video
// extractors. The extraction internals themselves live outside this
// module; consumers register implementations for the hosts they support.
package extractors

import "context"

// Video is one extracted playable file.
type Video struct {
	URL     string
	Quality string
}

// Subtitle is one extracted subtitle track.
type Subtitle struct {
	URL  string
	Lang string
}

// Extracted is the result of resolving one embed URL.
type Extracted struct {
	Videos    []Video
	Subtitles []Subtitle
}

// Extractor is the interface that all extractors must implement
type Extractor interface {
	Extract(ctx context.Context, url string) (*Extracted, error)
}
