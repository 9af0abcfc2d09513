package raster

import (
	"strings"

	"github.com/matzehuels/reviewcraft/pkg/datauri"
	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg" and "jpg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want png or jpeg)", s)
}

// MIME returns the media type of f.
func (f Format) MIME() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	return string(f)
}

// Result is an encoded image. DataURI is never empty or [datauri.Empty].
type Result struct {
	DataURI string
	Format  Format
	Tier    string // cascade tier that produced the image
}

// Bytes decodes the image payload.
func (r Result) Bytes() ([]byte, error) {
	_, data, err := datauri.Decode(r.DataURI)
	return data, err
}
