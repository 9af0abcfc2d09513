package review

import (
	"embed"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/fonts"
)

//go:embed templates/page.html.tmpl
var templates embed.FS

var (
	pageTmpl = template.Must(template.New("page.html.tmpl").Funcs(template.FuncMap{
		"stars":   stars,
		"compact": compact,
	}).ParseFS(templates, "templates/page.html.tmpl"))

	contentPolicy = bluemonday.UGCPolicy()
)

type pageData struct {
	ElementID  string
	Review     *Review
	Style      Style
	Content    template.HTML
	FontFamily template.CSS
}

// RenderPage writes the standalone preview page for rv. The card carries
// the id [ElementID]. Content may contain basic inline HTML, which is
// sanitized; line breaks are kept.
func RenderPage(w io.Writer, rv *Review) error {
	if rv == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no review to render")
	}
	data := pageData{
		ElementID:  ElementID,
		Review:     rv,
		Style:      rv.Platform.Style(),
		Content:    SanitizeContent(rv.Content),
		FontFamily: template.CSS(fonts.FontFamily),
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "render preview page")
	}
	return nil
}

// SanitizeContent strips unsafe markup from review text and turns newlines
// into <br> elements.
func SanitizeContent(s string) template.HTML {
	clean := contentPolicy.Sanitize(s)
	clean = strings.ReplaceAll(strings.ReplaceAll(clean, "\r\n", "\n"), "\n", "<br>")
	return template.HTML(clean)
}

func stars(n int) string {
	n = max(0, min(5, n))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// compact formats counts the way social platforms do: 999, 1.2K, 3.4M.
func compact(n int) string {
	switch {
	case n >= 1_000_000:
		return trimZero(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return trimZero(float64(n)/1_000) + "K"
	default:
		return strconv.Itoa(n)
	}
}

func trimZero(f float64) string {
	s := strconv.FormatFloat(f, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
