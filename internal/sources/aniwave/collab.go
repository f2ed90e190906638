package aniwave

import (
	"github.com/pkg/browser"
)

// The scraped host gates its endpoints behind collaborators this package
// treats as opaque: a token signer, a payload decoder and a
// browser-assisted fetch used as a one-shot retry trigger.

// VRFSigner produces the signed verification token the host requires for
// a given raw identifier.
type VRFSigner interface {
	Sign(rawID string) (string, error)
}

// Deobfuscator decodes the obfuscated strings in the host's server
// payloads back into plain text.
type Deobfuscator interface {
	Decode(opaque string) (string, error)
}

// BrowserFallback opens a URL out-of-band. The host sets cookies/session
// state through it, so a failed direct fetch is retried once after the
// fallback has run.
type BrowserFallback interface {
	Open(url string) error
}

// SystemBrowser is the default BrowserFallback, opening the URL in the
// user's browser.
type SystemBrowser struct{}

func (SystemBrowser) Open(url string) error {
	return browser.OpenURL(url)
}
