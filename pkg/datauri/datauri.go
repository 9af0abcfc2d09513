// Package datauri encodes and decodes RFC 2397 data URIs.
package datauri

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Empty is the sentinel some renderers return instead of failing.
// It is never a valid image.
const Empty = "data:,"

// Encode returns a base64 data URI for data with the given MIME type.
func Encode(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Is reports whether s is a data URI.
func Is(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// Decode splits a data URI into its MIME type and payload.
// Both base64 and percent-encoded payloads are accepted.
func Decode(s string) (mime string, data []byte, err error) {
	if !Is(s) {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "not a data URI")
	}
	meta, payload, ok := strings.Cut(s[5:], ",")
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "data URI has no payload separator")
	}

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	mime, _, _ = strings.Cut(meta, ";")
	if mime == "" {
		mime = "text/plain"
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var unescaped string
		unescaped, err = url.PathUnescape(payload)
		data = []byte(unescaped)
	}
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode data URI payload")
	}
	return mime, data, nil
}

// Valid reports whether s is a data URI with a non-empty payload.
func Valid(s string) bool {
	if s == Empty || !Is(s) {
		return false
	}
	_, data, err := Decode(s)
	return err == nil && len(data) > 0
}
