package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxElementIDLen = 256
	maxFilenameLen  = 200
)

var (
	httpSchemeRe = regexp.MustCompile(`(?i)^https?://`)
	hexColorRe   = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// ValidateElementID checks an export target id. Ids end up inside
// selectors on the page, so quotes and whitespace are rejected.
func ValidateElementID(id string) error {
	switch {
	case id == "":
		return New(ErrCodeInvalidInput, "element id cannot be empty")
	case len(id) > maxElementIDLen:
		return New(ErrCodeInvalidInput, "element id longer than %d characters", maxElementIDLen)
	case strings.IndexFunc(id, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) >= 0:
		return New(ErrCodeInvalidInput, "element id contains whitespace or control characters")
	case strings.ContainsAny(id, `"'\`):
		return New(ErrCodeInvalidInput, "element id contains quote characters")
	}
	return nil
}

// ValidateFilename checks the base name of an exported image. The sink adds
// the extension, so only a bare name without path components is accepted.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	case len(name) > maxFilenameLen:
		return New(ErrCodeInvalidPath, "filename longer than %d characters", maxFilenameLen)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return New(ErrCodeInvalidPath, "filename contains control characters")
	case strings.ContainsAny(name, `/\`):
		return New(ErrCodeInvalidPath, "filename cannot contain path separators")
	case name == "." || name == "..":
		return New(ErrCodeInvalidPath, "filename cannot be %q", name)
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	if !httpSchemeRe.MatchString(rawURL) {
		return New(ErrCodeInvalidURL, "URL must use http or https scheme")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidURL, err, "URL cannot be parsed")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidURL, "URL must have a host")
	}
	return nil
}

// ValidateHexColor accepts #rgb and #rrggbb.
func ValidateHexColor(c string) error {
	if !hexColorRe.MatchString(c) {
		return New(ErrCodeInvalidInput, "invalid color %q (expected #rgb or #rrggbb)", c)
	}
	return nil
}
