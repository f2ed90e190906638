package aniwave

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSigner prefixes ids so tests can assert the token reached the host.
type fakeSigner struct{ fail bool }

func (f fakeSigner) Sign(rawID string) (string, error) {
	if f.fail {
		return "", fmt.Errorf("signer offline")
	}
	return "vrf-" + rawID, nil
}

// fakeDecoder strips an "enc:" prefix; anything else is corrupt.
type fakeDecoder struct{}

func (fakeDecoder) Decode(opaque string) (string, error) {
	plain, ok := strings.CutPrefix(opaque, "enc:")
	if !ok {
		return "", fmt.Errorf("corrupt payload")
	}
	return plain, nil
}

type recordingBrowser struct {
	calls []string
}

func (b *recordingBrowser) Open(url string) error {
	b.calls = append(b.calls, url)
	return nil
}

func newTestResolver(t *testing.T, handler http.Handler, opts Options) (*Resolver, *recordingBrowser) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	browser := &recordingBrowser{}
	opts.BaseURL = server.URL
	if opts.Signer == nil {
		opts.Signer = fakeSigner{}
	}
	if opts.Decoder == nil {
		opts.Decoder = fakeDecoder{}
	}
	opts.Fallback = browser

	resolver, err := NewResolver(opts)
	require.NoError(t, err)
	return resolver, browser
}

func TestNewResolverRequiresCollaborators(t *testing.T) {
	_, err := NewResolver(Options{Decoder: fakeDecoder{}})
	assert.Error(t, err)

	_, err = NewResolver(Options{Signer: fakeSigner{}})
	assert.Error(t, err)
}

func TestServersFiltersByCategory(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ajax/server/list/ep-1", r.URL.Path)
		assert.Equal(t, "vrf-ep-1", r.URL.Query().Get("vrf"))
		fmt.Fprint(w, `{"result": "<div class=\"type\" data-type=\"sub\"><ul><li data-link-id=\"s1\">Vidplay</li><li data-link-id=\"s2\">MyCloud</li></ul></div><div class=\"type\" data-type=\"dub\"><ul><li data-link-id=\"d1\">Vidplay</li></ul></div>"}`)
	})

	resolver, _ := newTestResolver(t, handler, Options{Category: "sub"})
	servers, err := resolver.Servers(context.Background(), "ep-1")
	require.NoError(t, err)

	require.Len(t, servers, 2)
	assert.Equal(t, Server{Name: "Vidplay", LinkID: "s1"}, servers[0])
	assert.Equal(t, Server{Name: "MyCloud", LinkID: "s2"}, servers[1])
}

func TestServersEmptyCategoryIsNonFatal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": "<div class=\"type\" data-type=\"dub\"><ul><li data-link-id=\"d1\">Vidplay</li></ul></div>"}`)
	})

	resolver, _ := newTestResolver(t, handler, Options{Category: "sub"})
	servers, err := resolver.Servers(context.Background(), "ep-1")
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestStreamsDecodesPayload(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ajax/server/s1", r.URL.Path)
		assert.Equal(t, "vrf-s1", r.URL.Query().Get("vrf"))
		fmt.Fprint(w, `{"result": {"url": "enc:https://cdn.example/master.m3u8", "skip_data": "enc:{\"intro\":[10,95],\"outro\":[1320,1405]}"}}`)
	})

	resolver, browser := newTestResolver(t, handler, Options{})
	stream, err := resolver.Streams(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, browser.calls)

	require.Len(t, stream.Streams, 1)
	assert.Equal(t, "https://cdn.example/master.m3u8", stream.Streams[0].File)
	assert.Equal(t, "auto", stream.Streams[0].Quality)

	require.Len(t, stream.Skips, 2)
	assert.Equal(t, "Intro", stream.Skips[0].Title)
	assert.Equal(t, 10.0, stream.Skips[0].Start)
	assert.Equal(t, 95.0, stream.Skips[0].End)
	assert.Equal(t, "Outro", stream.Skips[1].Title)
}

func TestStreamsSuppressesAbsentSkipWindows(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": {"url": "enc:https://cdn.example/master.m3u8", "skip_data": "enc:{\"intro\":[0,0],\"outro\":[1320,1405]}"}}`)
	})

	resolver, _ := newTestResolver(t, handler, Options{})
	stream, err := resolver.Streams(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, stream.Skips, 1)
	assert.Equal(t, "Outro", stream.Skips[0].Title)
}

func TestStreamsBrowserFallbackRetriesOnce(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"result": {"url": "enc:https://cdn.example/master.m3u8", "skip_data": ""}}`)
	})

	resolver, browser := newTestResolver(t, handler, Options{})
	stream, err := resolver.Streams(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	require.Len(t, browser.calls, 1)
	require.Len(t, stream.Streams, 1)
	assert.Empty(t, stream.Skips)
}

func TestStreamsPersistentRejectionIsTerminal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	resolver, browser := newTestResolver(t, handler, Options{})
	_, err := resolver.Streams(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrResolveFailed)
	assert.Len(t, browser.calls, 1)
}

func TestStreamsCorruptPayloadIsGenericFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": {"url": "not-obfuscated", "skip_data": ""}}`)
	})

	resolver, _ := newTestResolver(t, handler, Options{})
	_, err := resolver.Streams(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrResolveFailed)
}

func TestStreamsSignerFailure(t *testing.T) {
	resolver, _ := newTestResolver(t, http.NewServeMux(), Options{Signer: fakeSigner{fail: true}})
	_, err := resolver.Streams(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrResolveFailed)
}
