// Package aniwave resolves episodes against an HTML-scraped video host.
// Resolution is two-phase: a token-gated server list parsed out of an
// HTML fragment, then a per-server payload whose url and skip data are
// decoded by external collaborators before extraction.
package aniwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eltik/anify-source/internal/sources"
	"github.com/eltik/anify-source/internal/sources/httpx"
	"github.com/eltik/anify-source/pkg/extractors"
)

// ErrResolveFailed is the generic terminal failure of the resolution
// chain; the underlying cause is logged, never partially returned.
var ErrResolveFailed = errors.New("aniwave: failed to resolve sources")

// Server is one named server option carrying its opaque link id.
type Server struct {
	Name   string
	LinkID string
}

// Options configures a Resolver.
type Options struct {
	BaseURL string
	HTTP    *httpx.Client
	Logger  *slog.Logger
	// Category is the variant name matched against the server list's
	// ".type" sections ("sub", "softsub", "dub").
	Category string

	Signer   VRFSigner
	Decoder  Deobfuscator
	Fallback BrowserFallback
}

// Resolver is the resolution finalizer for the scraped host.
type Resolver struct {
	baseURL  string
	http     *httpx.Client
	logger   *slog.Logger
	category string
	signer   VRFSigner
	decoder  Deobfuscator
	fallback BrowserFallback
}

// NewResolver creates a resolver. Signer and Decoder are required; the
// fallback defaults to the system browser.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Signer == nil {
		return nil, fmt.Errorf("aniwave: a VRF signer is required")
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("aniwave: a deobfuscator is required")
	}
	if opts.HTTP == nil {
		opts.HTTP = httpx.NewClient(httpx.DefaultClientConfig())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Category == "" {
		opts.Category = "sub"
	}
	if opts.Fallback == nil {
		opts.Fallback = SystemBrowser{}
	}

	return &Resolver{
		baseURL:  opts.BaseURL,
		http:     opts.HTTP,
		logger:   opts.Logger.With("source", "aniwave"),
		category: opts.Category,
		signer:   opts.Signer,
		decoder:  opts.Decoder,
		fallback: opts.Fallback,
	}, nil
}

type ajaxEnvelope struct {
	Result string `json:"result"`
}

type serverPayload struct {
	Result struct {
		URL      string `json:"url"`
		SkipData string `json:"skip_data"`
	} `json:"result"`
}

type skipWindows struct {
	Intro [2]float64 `json:"intro"`
	Outro [2]float64 `json:"outro"`
}

// Servers fetches and parses the server list for one episode id.
func (r *Resolver) Servers(ctx context.Context, episodeID string) ([]Server, error) {
	token, err := r.signer.Sign(episodeID)
	if err != nil {
		return nil, fmt.Errorf("signing episode id: %w", err)
	}

	listURL := fmt.Sprintf("%s/ajax/server/list/%s?vrf=%s", r.baseURL, url.PathEscape(episodeID), url.QueryEscape(token))
	resp, err := r.http.Get(ctx, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching server list: %w", err)
	}

	var envelope ajaxEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("parsing server list envelope: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(envelope.Result))
	if err != nil {
		return nil, fmt.Errorf("parsing server list HTML: %w", err)
	}

	servers := []Server{}
	doc.Find(".type").Each(func(i int, s *goquery.Selection) {
		if s.AttrOr("data-type", "") != r.category {
			return
		}
		s.Find("li").Each(func(j int, li *goquery.Selection) {
			linkID, exists := li.Attr("data-link-id")
			if !exists {
				return
			}
			servers = append(servers, Server{
				Name:   strings.TrimSpace(li.Text()),
				LinkID: linkID,
			})
		})
	})

	if len(servers) == 0 {
		r.logger.Warn("no servers for category",
			"category", r.category,
			"episode_id", episodeID,
			"response_length", len(envelope.Result),
		)
	}

	return servers, nil
}

// Streams resolves one server's link id into playable streams. A non-2xx
// payload fetch triggers the browser-assisted fallback exactly once
// before the request is retried; any further failure is terminal.
func (r *Resolver) Streams(ctx context.Context, linkID string) (*sources.MediaStream, error) {
	stream, err := r.resolve(ctx, linkID)
	if err != nil {
		r.logger.Error("resolution chain failed", "link_id", linkID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	return stream, nil
}

func (r *Resolver) resolve(ctx context.Context, linkID string) (*sources.MediaStream, error) {
	token, err := r.signer.Sign(linkID)
	if err != nil {
		return nil, fmt.Errorf("signing link id: %w", err)
	}

	sourceURL := fmt.Sprintf("%s/ajax/server/%s?vrf=%s", r.baseURL, url.PathEscape(linkID), url.QueryEscape(token))
	resp, err := r.http.GetRaw(ctx, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching server payload: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		// The host answers direct clients with a challenge page; the
		// browser pass primes the session, then one retry.
		r.logger.Info("server payload fetch rejected, invoking browser fallback",
			"status", resp.StatusCode(),
			"link_id", linkID,
		)
		if err := r.fallback.Open(sourceURL); err != nil {
			return nil, fmt.Errorf("browser fallback: %w", err)
		}
		resp, err = r.http.GetRaw(ctx, sourceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("refetching server payload: %w", err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("server payload fetch failed with status %d after retry", resp.StatusCode())
		}
	}

	var payload serverPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("parsing server payload: %w", err)
	}

	embedURL, err := r.decoder.Decode(payload.Result.URL)
	if err != nil {
		return nil, fmt.Errorf("decoding embed url: %w", err)
	}

	stream := &sources.MediaStream{
		Streams:   []sources.Stream{},
		Subtitles: []sources.SubtitleTrack{},
		Skips:     []sources.SkipMarker{},
		Previews:  []string{},
	}

	if payload.Result.SkipData != "" {
		skips, err := r.parseSkips(payload.Result.SkipData)
		if err != nil {
			return nil, fmt.Errorf("decoding skip data: %w", err)
		}
		stream.Skips = skips
	}

	extracted, err := extractors.GetExtractor(embedURL).Extract(ctx, embedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting from %s: %w", embedURL, err)
	}

	for _, video := range extracted.Videos {
		quality := video.Quality
		if quality == "" {
			quality = "auto"
		}
		stream.Streams = append(stream.Streams, sources.Stream{
			File:    video.URL,
			Quality: quality,
			Format:  sources.FormatHLS,
		})
	}
	for _, sub := range extracted.Subtitles {
		stream.Subtitles = append(stream.Subtitles, sources.SubtitleTrack{
			URL:      sub.URL,
			Language: sub.Lang,
			Format:   sources.SubtitleVTT,
		})
	}

	return stream, nil
}

// parseSkips decodes the obfuscated skip data into markers. Windows with
// a zero end timestamp are absent and emit nothing.
func (r *Resolver) parseSkips(opaque string) ([]sources.SkipMarker, error) {
	plain, err := r.decoder.Decode(opaque)
	if err != nil {
		return nil, err
	}

	var windows skipWindows
	if err := json.Unmarshal([]byte(plain), &windows); err != nil {
		return nil, err
	}

	skips := []sources.SkipMarker{}
	if windows.Intro[1] > 0 {
		skips = append(skips, sources.SkipMarker{Title: "Intro", Start: windows.Intro[0], End: windows.Intro[1]})
	}
	if windows.Outro[1] > 0 {
		skips = append(skips, sources.SkipMarker{Title: "Outro", Start: windows.Outro[0], End: windows.Outro[1]})
	}
	return skips, nil
}
