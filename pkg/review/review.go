package review

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/matzehuels/reviewcraft/pkg/avatar"
	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// ElementID is the id of the review card on the preview page.
const ElementID = "review-preview"

// Gender selects avatar styling when an avatar is generated.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
	Random Gender = "random"
)

// Review is one review mockup.
type Review struct {
	ID       string    `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Platform Platform  `json:"platform" yaml:"platform" toml:"platform"`
	Name     string    `json:"name" yaml:"name" toml:"name"`
	Username string    `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"`
	Avatar   string    `json:"avatar,omitempty" yaml:"avatar,omitempty" toml:"avatar,omitempty"`
	Gender   Gender    `json:"gender,omitempty" yaml:"gender,omitempty" toml:"gender,omitempty"`
	Title    string    `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`
	Content  string    `json:"content" yaml:"content" toml:"content"`
	Rating   int       `json:"rating,omitempty" yaml:"rating,omitempty" toml:"rating,omitempty"`
	Date     time.Time `json:"date" yaml:"date" toml:"date"`
	Likes    int       `json:"likes,omitempty" yaml:"likes,omitempty" toml:"likes,omitempty"`
	Replies  int       `json:"replies,omitempty" yaml:"replies,omitempty" toml:"replies,omitempty"`
	Shares   int       `json:"shares,omitempty" yaml:"shares,omitempty" toml:"shares,omitempty"`
	Verified bool      `json:"verified,omitempty" yaml:"verified,omitempty" toml:"verified,omitempty"`
	Images   []string  `json:"images,omitempty" yaml:"images,omitempty" toml:"images,omitempty"`
}

// SetDefaults fills the optional fields a preview needs.
func (r *Review) SetDefaults(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Platform = Platform(strings.ToLower(string(r.Platform)))
	if r.Gender == "" {
		r.Gender = Random
	}
	if r.Username == "" {
		r.Username = usernameOf(r.Name)
	}
	if r.Avatar == "" {
		r.Avatar = AvatarURL(r.Name)
	}
	if r.Date.IsZero() {
		r.Date = now
	}
}

// Validate checks the review against its platform's limits.
func (r *Review) Validate() error {
	if !r.Platform.Valid() {
		return errors.New(errors.ErrCodeInvalidPlatform, "unknown platform %q", r.Platform)
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "name cannot be empty")
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "content cannot be empty")
	}

	style := r.Platform.Style()
	if n := utf8.RuneCountInString(r.Content); n > style.MaxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			"content is %d characters, %s allows %d", n, style.Name, style.MaxLength)
	}
	if utf8.RuneCountInString(r.Title) > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "title too long (max 100 characters)")
	}
	if style.HasRating && (r.Rating < 1 || r.Rating > 5) {
		return errors.New(errors.ErrCodeInvalidInput, "%s reviews need a rating from 1 to 5, got %d", style.Name, r.Rating)
	}
	if r.Likes < 0 || r.Replies < 0 || r.Shares < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "engagement counts cannot be negative")
	}
	switch r.Gender {
	case "", Male, Female, Random:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown gender %q", r.Gender)
	}
	for _, src := range append([]string{r.Avatar}, r.Images...) {
		if err := validateImage(src); err != nil {
			return err
		}
	}
	return nil
}

// validateImage accepts http(s) URLs, data URIs and same-origin paths.
func validateImage(src string) error {
	switch {
	case src == "":
		return nil
	case strings.HasPrefix(src, "data:image/"), strings.HasPrefix(src, "/"):
		return nil
	default:
		if err := errors.ValidateURL(src); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "image %q", src)
		}
		return nil
	}
}

// DefaultFilename is the export name without extension, e.g. "reddit-review".
func (r *Review) DefaultFilename() string {
	return fmt.Sprintf("%s-review", r.Platform)
}

// AvatarURL returns an initials avatar URL on ui-avatars.com with a color
// derived from name.
func AvatarURL(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "User"
	}
	bg := strings.TrimPrefix(avatar.ColorHex(name), "#")
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) +
		"&size=300&background=" + bg + "&color=fff&format=png"
}

func usernameOf(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
