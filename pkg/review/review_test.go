package review

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/reviewcraft/pkg/avatar"
	"github.com/matzehuels/reviewcraft/pkg/errors"
)

func validReview() *Review {
	return &Review{
		Platform: Amazon,
		Name:     "Jane Doe",
		Content:  "Great product,\nwould buy again.",
		Rating:   5,
		Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Likes:    1200,
	}
}

func TestPlatforms(t *testing.T) {
	ps := Platforms()
	if len(ps) != 15 {
		t.Fatalf("Platforms() = %d entries, want 15", len(ps))
	}
	for _, p := range ps {
		s := p.Style()
		if s.Name == "" || !strings.HasPrefix(s.Color, "#") || s.MaxLength <= 0 {
			t.Errorf("%s: incomplete style %+v", p, s)
		}
	}
	if Twitter.Style().MaxLength != 280 || !Trustpilot.Style().HasRating || Trustpilot.Style().HasEngagement {
		t.Error("style table does not match platform limits")
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"reddit", Reddit, false},
		{" YouTube ", YouTube, false},
		{"IMDB", IMDb, false},
		{"myspace", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidPlatform) {
			t.Errorf("ParsePlatform(%q) code = %v", tt.in, errors.GetCode(err))
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Review)
		ok     bool
	}{
		{"valid", func(*Review) {}, true},
		{"unknown platform", func(r *Review) { r.Platform = "myspace" }, false},
		{"empty name", func(r *Review) { r.Name = "  " }, false},
		{"empty content", func(r *Review) { r.Content = "" }, false},
		{"too long for twitter", func(r *Review) {
			r.Platform = Twitter
			r.Content = strings.Repeat("x", 281)
		}, false},
		{"exactly twitter limit", func(r *Review) {
			r.Platform = Twitter
			r.Content = strings.Repeat("é", 280)
		}, true},
		{"rating required", func(r *Review) { r.Rating = 0 }, false},
		{"rating too high", func(r *Review) { r.Rating = 6 }, false},
		{"rating ignored without stars", func(r *Review) {
			r.Platform = Reddit
			r.Rating = 0
		}, true},
		{"negative likes", func(r *Review) { r.Likes = -1 }, false},
		{"bad gender", func(r *Review) { r.Gender = "other" }, false},
		{"data avatar", func(r *Review) { r.Avatar = avatar.Placeholder }, true},
		{"relative avatar", func(r *Review) { r.Avatar = "/logo.png" }, true},
		{"javascript avatar", func(r *Review) { r.Avatar = "javascript:alert(1)" }, false},
		{"ftp image", func(r *Review) { r.Images = []string{"ftp://x/y.png"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReview()
			tt.mutate(r)
			err := r.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok %v", err, tt.ok)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Review{Platform: "REDDIT", Name: "Jane M. Doe", Content: "x"}
	r.SetDefaults(now)

	if r.ID == "" || r.Platform != Reddit || r.Gender != Random || !r.Date.Equal(now) {
		t.Errorf("SetDefaults() = %+v", r)
	}
	if r.Username != "jane_m_doe" {
		t.Errorf("Username = %q", r.Username)
	}
	if r.Avatar != AvatarURL("Jane M. Doe") {
		t.Errorf("Avatar = %q", r.Avatar)
	}
	if r.DefaultFilename() != "reddit-review" {
		t.Errorf("DefaultFilename() = %q", r.DefaultFilename())
	}

	keep := &Review{Avatar: "https://example.com/me.png", Username: "jd", Date: now.Add(time.Hour)}
	keep.SetDefaults(now)
	if keep.Avatar != "https://example.com/me.png" || keep.Username != "jd" || !keep.Date.Equal(now.Add(time.Hour)) {
		t.Errorf("SetDefaults() overwrote fields: %+v", keep)
	}
}

func TestAvatarURL(t *testing.T) {
	u := AvatarURL("Jane Doe")
	bg := strings.TrimPrefix(avatar.ColorHex("Jane Doe"), "#")
	want := "https://ui-avatars.com/api/?name=Jane+Doe&size=300&background=" + bg + "&color=fff&format=png"
	if u != want {
		t.Errorf("AvatarURL() = %q, want %q", u, want)
	}
	if !strings.Contains(AvatarURL(""), "name=User") {
		t.Errorf("AvatarURL(\"\") = %q", AvatarURL(""))
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{"a.json": JSON, "a.YAML": YAML, "dir/a.yml": YAML, "a.toml": TOML}
	for path, want := range tests {
		if got, err := FormatOf(path); err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatOf("a.txt"); err == nil {
		t.Error("FormatOf(a.txt) should fail")
	}
}

func TestSaveLoadEachFormat(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "review"+ext)
			in := validReview()
			in.Images = []string{"https://example.com/a.jpg"}
			if err := Save(path, in); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
			out, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if out.Name != in.Name || out.Content != in.Content || out.Rating != 5 ||
				out.Likes != 1200 || !out.Date.Equal(in.Date) || len(out.Images) != 1 {
				t.Errorf("Load() = %+v", out)
			}
			if out.Avatar == "" {
				t.Error("Load() should apply defaults")
			}
		})
	}
}

func TestReadRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		format Format
		input  string
	}{
		{JSON, `{"platform":"reddit","name":"a","content":"b","colour":"red"}`},
		{YAML, "platform: reddit\nname: a\ncontent: b\ncolour: red\n"},
		{TOML, "platform = \"reddit\"\nname = \"a\"\ncontent = \"b\"\ncolour = \"red\"\n"},
	}
	for _, tt := range tests {
		if _, err := Read(strings.NewReader(tt.input), tt.format); err == nil {
			t.Errorf("Read(%s) accepted an unknown field", tt.format)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"platform":"myspace","name":"a","content":"b"}`), 0o644)
	if _, err := Load(bad); !errors.Is(err, errors.ErrCodeInvalidPlatform) {
		t.Errorf("invalid platform error = %v", err)
	}
}

func TestRenderPage(t *testing.T) {
	r := validReview()
	r.Content = "Loved it <b>a lot</b><script>alert(1)</script>\nSecond line"
	r.Verified = true
	r.SetDefaults(time.Now())

	var buf bytes.Buffer
	if err := RenderPage(&buf, r); err != nil {
		t.Fatalf("RenderPage() error: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`id="review-preview"`,
		`alt="Jane Doe"`,
		"<b>a lot</b>",
		"<br>Second line",
		"★★★★★",
		"1.2K",
		"Mar 14, 2025",
		"#FF9900",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("page contains unsanitized script")
	}
	if !strings.Contains(html, "ui-avatars.com/api/?name=Jane") {
		t.Error("page missing default avatar URL")
	}

	if err := RenderPage(&buf, nil); err == nil {
		t.Error("RenderPage(nil) should fail")
	}
}

func TestCompactAndStars(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1K", 1200: "1.2K", 2_500_000: "2.5M"}
	for n, want := range tests {
		if got := compact(n); got != want {
			t.Errorf("compact(%d) = %q, want %q", n, got, want)
		}
	}
	if stars(3) != "★★★☆☆" || stars(9) != "★★★★★" || stars(-1) != "☆☆☆☆☆" {
		t.Error("stars() out of range handling")
	}
}
