package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/review"
)

// platformsCommand creates the platforms command.
func (c *CLI) platformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the supported review platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), platformTable(review.Platforms()))
			return nil
		},
	}
}

// platformTable renders one row per platform with its brand color swatch.
func platformTable(platforms []review.Platform) string {
	rows := make([][]string, 0, len(platforms))
	for _, p := range platforms {
		st := p.Style()
		rows = append(rows, []string{
			string(p),
			st.Name,
			lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color)).Render("■ " + st.Color),
			yesNo(st.HasRating),
			yesNo(st.HasEngagement),
			strconv.Itoa(st.MaxLength),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Name", "Color", "Rating", "Engagement", "Max length").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func yesNo(b bool) string {
	if b {
		return iconSuccess
	}
	return "—"
}
