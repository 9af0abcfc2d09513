package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/reviewcraft/pkg/review"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ReviewFormModel - Interactive review authoring
// =============================================================================

type formStage int

const (
	stagePlatform formStage = iota
	stageFields
	stageDone
)

// formField is one single-line text input.
type formField struct {
	key      string
	label    string
	value    string
	required bool
}

// ReviewFormModel asks for a platform, then for the review fields.
type ReviewFormModel struct {
	Platforms []review.Platform
	Cursor    int
	Height    int
	Offset    int

	Fields  []formField
	Focus   int
	Err     string
	stage   formStage
	Aborted bool
}

// NewReviewFormModel creates a form. A non-empty platform skips the list.
func NewReviewFormModel(platform review.Platform) ReviewFormModel {
	m := ReviewFormModel{Platforms: review.Platforms(), Height: 10}
	if platform.Valid() {
		for i, p := range m.Platforms {
			if p == platform {
				m.Cursor = i
			}
		}
		m = m.selectPlatform()
	}
	return m
}

func (m ReviewFormModel) Init() tea.Cmd {
	return nil
}

func (m ReviewFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "esc" {
			m.Aborted = true
			return m, tea.Quit
		}
		if m.stage == stagePlatform {
			return m.updateList(msg)
		}
		return m.updateFields(msg)
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m ReviewFormModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.Aborted = true
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < len(m.Platforms)-1 {
			m.Cursor++
			if m.Cursor >= m.Offset+m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	case "enter":
		m = m.selectPlatform()
	}
	return m, nil
}

func (m ReviewFormModel) selectPlatform() ReviewFormModel {
	st := m.Platforms[m.Cursor].Style()
	m.Fields = []formField{
		{key: "name", label: "Name", required: true},
		{key: "title", label: "Title"},
		{key: "content", label: "Content", required: true},
	}
	if st.HasRating {
		m.Fields = append(m.Fields, formField{key: "rating", label: "Rating (1-5)", value: "5", required: true})
	}
	m.stage = stageFields
	return m
}

func (m ReviewFormModel) updateFields(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.Fields[m.Focus]
	switch msg.Type {
	case tea.KeyRunes:
		f.value += string(msg.Runes)
	case tea.KeySpace:
		f.value += " "
	case tea.KeyBackspace:
		if r := []rune(f.value); len(r) > 0 {
			f.value = string(r[:len(r)-1])
		}
	case tea.KeyUp, tea.KeyShiftTab:
		if m.Focus > 0 {
			m.Focus--
		}
	case tea.KeyDown, tea.KeyTab:
		if m.Focus < len(m.Fields)-1 {
			m.Focus++
		}
	case tea.KeyEnter:
		if f.required && strings.TrimSpace(f.value) == "" {
			m.Err = f.label + " is required"
			return m, nil
		}
		m.Err = ""
		if m.Focus < len(m.Fields)-1 {
			m.Focus++
			return m, nil
		}
		if _, err := m.Review(); err != nil {
			m.Err = err.Error()
			return m, nil
		}
		m.stage = stageDone
		return m, tea.Quit
	}
	return m, nil
}

// Review builds the review from the form values. Defaults are not applied.
func (m ReviewFormModel) Review() (*review.Review, error) {
	rv := &review.Review{Platform: m.Platforms[m.Cursor]}
	for _, f := range m.Fields {
		v := strings.TrimSpace(f.value)
		switch f.key {
		case "name":
			rv.Name = v
		case "title":
			rv.Title = v
		case "content":
			rv.Content = v
		case "rating":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 5 {
				return nil, fmt.Errorf("rating must be a number from 1 to 5")
			}
			rv.Rating = n
		}
	}
	return rv, nil
}

// Done reports whether the form was submitted.
func (m ReviewFormModel) Done() bool {
	return m.stage == stageDone && !m.Aborted
}

func (m ReviewFormModel) View() string {
	if m.stage == stagePlatform {
		return m.viewList()
	}

	var b strings.Builder
	st := m.Platforms[m.Cursor].Style()
	b.WriteString(StyleTitle.Render("New " + st.Name + " review"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("tab/↑↓ move  ⏎ next  esc quit"))
	b.WriteString("\n\n")

	for i, f := range m.Fields {
		label := fmt.Sprintf("%-14s", f.label)
		if i == m.Focus {
			b.WriteString(listSelectedStyle.Render("▸ " + label))
			b.WriteString(listNormalStyle.Render(f.value + "█"))
		} else {
			b.WriteString(listDimStyle.Render("  " + label))
			b.WriteString(listNormalStyle.Render(f.value))
		}
		b.WriteString("\n")
	}
	if m.Focus < len(m.Fields) && m.Fields[m.Focus].key == "content" {
		n := len([]rune(m.Fields[m.Focus].value))
		b.WriteString(listDimStyle.Render(fmt.Sprintf("\n  %d/%d characters", n, st.MaxLength)))
		b.WriteString("\n")
	}
	if m.Err != "" {
		b.WriteString("\n" + StyleWarning.Render(m.Err) + "\n")
	}
	return b.String()
}

func (m ReviewFormModel) viewList() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Platform"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Platforms))
	for i := m.Offset; i < end; i++ {
		st := m.Platforms[i].Style()
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color)).Render("■")
		line := fmt.Sprintf("%s%s %-12s", cursor, swatch, st.Name)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Platforms))))
	return b.String()
}
