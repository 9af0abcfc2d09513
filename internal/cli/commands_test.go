package cli

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/pipeline"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

func testCLI() *CLI {
	return &CLI{Logger: newLogger(io.Discard, log.InfoLevel)}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := testCLI().RootCommand()
	want := []string{"export", "copy", "serve", "new", "avatar", "platforms", "cache", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestPlatformsCommand(t *testing.T) {
	root := testCLI().RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"platforms"})
	if err := root.Execute(); err != nil {
		t.Fatalf("platforms: %v", err)
	}
	for _, p := range review.Platforms() {
		if !strings.Contains(out.String(), p.Style().Name) {
			t.Errorf("table missing %s", p.Style().Name)
		}
	}
}

func TestAvatarCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a", "jd.png")
	if err := testCLI().runAvatar("Jane Doe", avatarOpts{out: out, size: 64}); err != nil {
		t.Fatalf("runAvatar() error: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("size = %v, want 64x64", b)
	}

	if err := testCLI().runAvatar("x", avatarOpts{size: 0}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("size 0: error = %v", err)
	}
}

func TestNewCommandFromFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yelp.toml")
	opts := newOpts{platform: "yelp", name: "Jane Doe", content: "Great tacos", rating: 4}
	if err := testCLI().runNew(path, opts); err != nil {
		t.Fatalf("runNew() error: %v", err)
	}

	rv, err := review.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rv.Platform != review.Yelp || rv.Rating != 4 || rv.Username == "" || rv.Avatar == "" {
		t.Errorf("saved review = %+v", rv)
	}

	// Existing files need --force.
	if err := testCLI().runNew(path, opts); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("second runNew() error = %v, want invalid path", err)
	}
	opts.force = true
	if err := testCLI().runNew(path, opts); err != nil {
		t.Errorf("runNew(--force) error: %v", err)
	}
}

func TestNewCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		opts newOpts
		code errors.Code
	}{
		{"bad extension", filepath.Join(dir, "r.txt"), newOpts{platform: "yelp", content: "x"}, errors.ErrCodeInvalidInput},
		{"bad platform", filepath.Join(dir, "r.json"), newOpts{platform: "myspace", content: "x"}, errors.ErrCodeInvalidPlatform},
		{"content without platform", filepath.Join(dir, "r.json"), newOpts{content: "x"}, errors.ErrCodeInvalidPlatform},
		{"bad rating", filepath.Join(dir, "r.json"), newOpts{platform: "yelp", name: "J", content: "x", rating: 9}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testCLI().runNew(tt.path, tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("runNew() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func typeString(m tea.Model, s string) tea.Model {
	for _, r := range s {
		if r == ' ' {
			m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
			continue
		}
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestReviewFormModel(t *testing.T) {
	var m tea.Model = NewReviewFormModel("")

	// Pick the second platform.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	form := m.(ReviewFormModel)
	platform := form.Platforms[1]
	if form.stage != stageFields {
		t.Fatalf("stage = %v, want fields", form.stage)
	}

	// Required name is enforced.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(ReviewFormModel).Err == "" {
		t.Error("empty required field should set an error")
	}

	m = typeString(m, "Jane Doe")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter}) // name
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter}) // title
	m = typeString(m, "Lovely")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})

	var cmd tea.Cmd
	for range len(m.(ReviewFormModel).Fields) {
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	}
	form = m.(ReviewFormModel)
	if !form.Done() || cmd == nil {
		t.Fatalf("form not submitted: err %q", form.Err)
	}

	rv, err := form.Review()
	if err != nil {
		t.Fatalf("Review() error: %v", err)
	}
	if rv.Platform != platform || rv.Name != "Jane Doe" || rv.Content != "Lovel" {
		t.Errorf("Review() = %+v", rv)
	}
	if platform.Style().HasRating && rv.Rating != 5 {
		t.Errorf("rating = %d, want default 5", rv.Rating)
	}
	if !strings.Contains(form.View(), "Jane Doe") {
		t.Error("View() should show entered values")
	}
}

func TestReviewFormModelPreselected(t *testing.T) {
	m := NewReviewFormModel(review.Amazon)
	if m.stage != stageFields || m.Platforms[m.Cursor] != review.Amazon {
		t.Fatalf("preselected platform not applied")
	}
	last := len(m.Fields) - 1
	if m.Fields[last].key != "rating" {
		t.Errorf("amazon form should ask for a rating, fields = %+v", m.Fields)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !next.(ReviewFormModel).Aborted || next.(ReviewFormModel).Done() {
		t.Error("esc should abort the form")
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.yaml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, func() {
			calls.Add(1)
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	// Unrelated files are ignored; a burst of writes triggers one call.
	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	for i := range 3 {
		_ = os.WriteFile(path, []byte(strings.Repeat("b", i+1)), 0o644)
	}

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("watchFile did not fire")
	}
	time.Sleep(2 * watchDebounce)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watchFile() error: %v", err)
	}
}

func TestExportRejectsInvalidFormat(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	err := testCLI().runExport(context.Background(), "review.json", exportOpts{format: "gif"})
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("runExport() error = %v, want invalid format", err)
	}
}

func TestCachePathCommand(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := testCLI().RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "path"})
	if err := root.Execute(); err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != filepath.Join(cache, appName) {
		t.Errorf("cache path = %q", got)
	}
}

func TestStatsLine(t *testing.T) {
	stats := pipeline.Stats{CloneTime: time.Millisecond, RasterTime: 4 * time.Millisecond}
	got := statsLine(3, raster.TierReduced, stats)
	for _, want := range []string{"3 images", "tier reduced", "5ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("statsLine() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(statsLine(0, "", pipeline.Stats{}), "images") {
		t.Error("zero images should be omitted")
	}
}

func TestPrintHelpersWriteToOut(t *testing.T) {
	var buf bytes.Buffer
	defer func(w io.Writer) { stdout = w }(stdout)
	stdout = &buf

	printSuccess("Saved %s", "x.png")
	printFile("/tmp/x.png")
	printKeyValue("Preview", "http://127.0.0.1")
	for _, want := range []string{"Saved x.png", "/tmp/x.png", "Preview"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q missing %q", buf.String(), want)
		}
	}
}
