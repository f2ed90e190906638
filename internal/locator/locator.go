// Package locator builds and parses the opaque tokens that identify a
// single episode or chapter across the catalog's resolution pipeline.
//
// A token packs (entryID, providerID, subItemID, ordinal) into one string
// the host application treats as an unparsed identifier. Provider and
// sub-item ids are base64-encoded because they may themselves contain the
// '-' delimiter. The base64 here is deliberately hand-rolled: the alphabet,
// '=' padding and Latin-1 domain restriction are part of the on-wire token
// format and must match the deployed encoders byte for byte.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var (
	// ErrLatin1Domain is returned when an id contains a code point above
	// 0xFF, which the token format cannot represent.
	ErrLatin1Domain = errors.New("locator: string contains characters outside of the Latin1 range")

	// ErrMalformedLocator is returned when a token cannot be split or
	// decoded back into its original fields.
	ErrMalformedLocator = errors.New("locator: malformed token")
)

// Token is the decoded form of an opaque locator.
type Token struct {
	EntryID    string
	ProviderID string
	SubItemID  string
	// Ordinal is carried verbatim; chapter numbers may be fractional
	// ("1.5") so it is never parsed here.
	Ordinal string
}

// Codec encodes and decodes tokens. EncodeEntryID selects the reading
// pipeline's format, which base64-encodes the entry id as well; the video
// pipeline's deployed format leaves it raw.
type Codec struct {
	EncodeEntryID bool
}

// Encode packs a token into its opaque string form.
func (c Codec) Encode(t Token) (string, error) {
	entry := t.EntryID
	if c.EncodeEntryID {
		enc, err := encodeBase64(entry)
		if err != nil {
			return "", fmt.Errorf("encoding entry id: %w", err)
		}
		entry = enc
	}

	provider, err := encodeBase64(t.ProviderID)
	if err != nil {
		return "", fmt.Errorf("encoding provider id: %w", err)
	}
	sub, err := encodeBase64(t.SubItemID)
	if err != nil {
		return "", fmt.Errorf("encoding sub-item id: %w", err)
	}

	// The ordinal rides unencoded, so it must not collide with the
	// field delimiter.
	if strings.Contains(t.Ordinal, "-") {
		return "", fmt.Errorf("%w: ordinal %q contains delimiter", ErrMalformedLocator, t.Ordinal)
	}

	return entry + "-" + provider + "-" + sub + "-" + t.Ordinal, nil
}

// Decode is the inverse of Encode. Corruption surfaces as
// ErrMalformedLocator; a token never silently decodes to the wrong media.
//
// When the entry id is raw it may itself contain '-', so fields are taken
// from the right: the last element is the ordinal, the two before it are
// the base64 provider and sub-item ids, and everything left of those is
// the entry id.
func (c Codec) Decode(raw string) (*Token, error) {
	parts := strings.Split(raw, "-")
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: %q has %d fields, want at least 4", ErrMalformedLocator, raw, len(parts))
	}
	if c.EncodeEntryID && len(parts) != 4 {
		return nil, fmt.Errorf("%w: %q has %d fields, want 4", ErrMalformedLocator, raw, len(parts))
	}

	ordinal := parts[len(parts)-1]
	subEnc := parts[len(parts)-2]
	providerEnc := parts[len(parts)-3]
	entry := strings.Join(parts[:len(parts)-3], "-")

	if c.EncodeEntryID {
		dec, err := decodeBase64(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: entry id: %v", ErrMalformedLocator, err)
		}
		entry = dec
	}

	provider, err := decodeBase64(providerEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: provider id: %v", ErrMalformedLocator, err)
	}
	sub, err := decodeBase64(subEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: sub-item id: %v", ErrMalformedLocator, err)
	}

	return &Token{
		EntryID:    entry,
		ProviderID: provider,
		SubItemID:  sub,
		Ordinal:    ordinal,
	}, nil
}

// encodeBase64 encodes a string of Latin-1 code points with the standard
// alphabet and '=' padding. Code points above 0xFF fail with
// ErrLatin1Domain rather than truncating.
func encodeBase64(input string) (string, error) {
	runes := []rune(input)
	bytes := make([]byte, len(runes))
	for i, r := range runes {
		if r > 0xFF {
			return "", ErrLatin1Domain
		}
		bytes[i] = byte(r)
	}

	var out strings.Builder
	out.Grow((len(bytes) + 2) / 3 * 4)

	for i := 0; i < len(bytes); i += 3 {
		var block uint32
		n := len(bytes) - i
		if n > 3 {
			n = 3
		}
		for j := 0; j < n; j++ {
			block |= uint32(bytes[i+j]) << (16 - 8*j)
		}

		out.WriteByte(base64Alphabet[block>>18&0x3F])
		out.WriteByte(base64Alphabet[block>>12&0x3F])
		if n > 1 {
			out.WriteByte(base64Alphabet[block>>6&0x3F])
		} else {
			out.WriteByte('=')
		}
		if n > 2 {
			out.WriteByte(base64Alphabet[block&0x3F])
		} else {
			out.WriteByte('=')
		}
	}

	return out.String(), nil
}

// decodeBase64 reverses encodeBase64. Characters outside the alphabet are
// stripped first, matching the lenient decoders already in the wild; a
// quantum that still does not divide into groups of four is an error.
func decodeBase64(input string) (string, error) {
	cleaned := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if ch == '=' || strings.IndexByte(base64Alphabet, ch) >= 0 {
			cleaned = append(cleaned, ch)
		}
	}

	if len(cleaned)%4 != 0 {
		return "", fmt.Errorf("invalid base64 length %d", len(cleaned))
	}

	var out strings.Builder
	for i := 0; i < len(cleaned); i += 4 {
		enc1 := base64Index(cleaned[i])
		enc2 := base64Index(cleaned[i+1])
		enc3 := base64Index(cleaned[i+2])
		enc4 := base64Index(cleaned[i+3])

		chr1 := (enc1 << 2) | (enc2 >> 4)
		chr2 := ((enc2 & 15) << 4) | (enc3 >> 2)
		chr3 := ((enc3 & 3) << 6) | enc4

		out.WriteRune(rune(chr1 & 0xFF))
		if enc3 != 64 {
			out.WriteRune(rune(chr2 & 0xFF))
		}
		if enc4 != 64 {
			out.WriteRune(rune(chr3 & 0xFF))
		}
	}

	return out.String(), nil
}

func base64Index(ch byte) int {
	if ch == '=' {
		return 64
	}
	return strings.IndexByte(base64Alphabet, ch)
}
