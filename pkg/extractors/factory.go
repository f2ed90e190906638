package extractors

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[string]Extractor{}
)

// Register binds an extractor to a host suffix (e.g. "vidplay.site").
func Register(host string, e Extractor) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(host)] = e
}

// GetExtractor returns the extractor registered for the URL's host. URLs
// with no registered extractor fall back to the HLS passthrough, which
// hands the decoded URL to the player untouched.
func GetExtractor(rawURL string) Extractor {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Passthrough{}
	}

	host := strings.ToLower(parsed.Hostname())

	mu.RLock()
	defer mu.RUnlock()
	for suffix, e := range registry {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return e
		}
	}
	return Passthrough{}
}

// Passthrough treats the decoded URL as a directly playable stream.
type Passthrough struct{}

func (Passthrough) Extract(ctx context.Context, url string) (*Extracted, error) {
	return &Extracted{
		Videos: []Video{{URL: url, Quality: "auto"}},
	}, nil
}
