package review

import (
	"slices"
	"strings"

	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Platform identifies the service a review mockup imitates.
type Platform string

const (
	Reddit     Platform = "reddit"
	Twitter    Platform = "twitter"
	Instagram  Platform = "instagram"
	Trustpilot Platform = "trustpilot"
	Facebook   Platform = "facebook"
	Yelp       Platform = "yelp"
	Amazon     Platform = "amazon"
	Netflix    Platform = "netflix"
	Spotify    Platform = "spotify"
	YouTube    Platform = "youtube"
	LinkedIn   Platform = "linkedin"
	TikTok     Platform = "tiktok"
	Discord    Platform = "discord"
	Steam      Platform = "steam"
	IMDb       Platform = "imdb"
)

// Style describes how a platform's review card looks and what it shows.
type Style struct {
	Name          string
	Color         string // brand color, #rrggbb
	Icon          string // short badge text
	HasRating     bool
	HasEngagement bool
	MaxLength     int // content length limit in characters
}

var styles = map[Platform]Style{
	Reddit:     {"Reddit", "#FF4500", "r/", false, true, 500},
	Twitter:    {"Twitter/X", "#1DA1F2", "X", false, true, 280},
	Instagram:  {"Instagram", "#E4405F", "IG", false, true, 300},
	Trustpilot: {"Trustpilot", "#00B67A", "★", true, false, 400},
	Facebook:   {"Facebook", "#1877F2", "f", false, true, 350},
	Yelp:       {"Yelp", "#FF1A1A", "y", true, true, 400},
	Amazon:     {"Amazon", "#FF9900", "a", true, true, 500},
	Netflix:    {"Netflix", "#E50914", "N", true, true, 400},
	Spotify:    {"Spotify", "#1DB954", "♫", true, true, 300},
	YouTube:    {"YouTube", "#FF0000", "▶", false, true, 350},
	LinkedIn:   {"LinkedIn", "#0077B5", "in", false, true, 400},
	TikTok:     {"TikTok", "#000000", "♪", false, true, 250},
	Discord:    {"Discord", "#5865F2", "#", false, true, 300},
	Steam:      {"Steam", "#1B2838", "S", true, true, 450},
	IMDb:       {"IMDb", "#F5C518", "IMDb", true, true, 400},
}

// Platforms returns every supported platform in a stable order.
func Platforms() []Platform {
	out := make([]Platform, 0, len(styles))
	for p := range styles {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ParsePlatform resolves a case-insensitive platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styles[p]; !ok {
		return "", errors.New(errors.ErrCodeInvalidPlatform, "unknown platform %q", s)
	}
	return p, nil
}

// Style returns the platform's style. Unknown platforms get a neutral style.
func (p Platform) Style() Style {
	if s, ok := styles[p]; ok {
		return s
	}
	return Style{Name: string(p), Color: "#6B7280", Icon: "?", MaxLength: 500}
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	_, ok := styles[p]
	return ok
}
