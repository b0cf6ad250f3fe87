// Package canon provides the stable encodings used for persistence and
// replay checks: canonical JSON, NFC-normalised display names and
// domain-separated digests.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Digest domains. The version suffix allows changing the encoding later.
const (
	DomainCombat = "brawl/combat/v1"
	DomainBoard  = "brawl/board/v1"
)

// MaxNameLength bounds a display name in runes after normalisation.
const MaxNameLength = 24

// Marshal encodes v as compact JSON without HTML escaping and without the
// trailing newline json.Encoder adds. Struct fields keep declaration order
// and map keys are sorted, so equal values encode to equal bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes data produced by Marshal into v. Unknown fields are
// rejected so stored rows cannot drift from the types silently.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Hash returns hex SHA-256 over domain, a NUL separator and data.
func Hash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest canonically encodes v and hashes it under domain.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Hash(domain, data), nil
}

// NormalizeName returns the NFC form of a display name with surrounding
// space trimmed, inner whitespace runs collapsed and control characters
// dropped, truncated to MaxNameLength runes.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	runes := []rune(b.String())
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return string(runes)
}
