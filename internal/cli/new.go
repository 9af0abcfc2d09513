package cli

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

// newOpts holds the new command flags.
type newOpts struct {
	platform string
	name     string
	title    string
	content  string
	rating   int
	force    bool
}

// newCommand creates the new command.
func (c *CLI) newCommand() *cobra.Command {
	opts := newOpts{}

	cmd := &cobra.Command{
		Use:   "new [file]",
		Short: "Create a review file",
		Long: `Create a review file. Without --content an interactive form asks for
the platform and the review fields. The file format follows the extension
(.json, .yaml, .yml or .toml).`,
		Example: `  reviewcraft new
  reviewcraft new yelp.toml --platform yelp --name "Jane Doe" --content "Great tacos" --rating 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "review.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return c.runNew(path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "platform id (see 'reviewcraft platforms')")
	cmd.Flags().StringVar(&opts.name, "name", "", "reviewer name")
	cmd.Flags().StringVar(&opts.title, "title", "", "review title")
	cmd.Flags().StringVar(&opts.content, "content", "", "review text")
	cmd.Flags().IntVar(&opts.rating, "rating", 5, "star rating for platforms that show one")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file")
	_ = cmd.RegisterFlagCompletionFunc("platform", completePlatform)

	return cmd
}

func (c *CLI) runNew(path string, opts newOpts) error {
	if _, err := review.FormatOf(path); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !opts.force {
		return errors.New(errors.ErrCodeInvalidPath, "%s exists, use --force to overwrite", path)
	}

	var platform review.Platform
	if opts.platform != "" {
		p, err := review.ParsePlatform(opts.platform)
		if err != nil {
			return err
		}
		platform = p
	}

	var rv *review.Review
	if opts.content != "" {
		if !platform.Valid() {
			return errors.New(errors.ErrCodeInvalidPlatform, "--platform is required with --content")
		}
		rv = &review.Review{
			Platform: platform,
			Name:     opts.name,
			Title:    opts.title,
			Content:  opts.content,
		}
		if platform.Style().HasRating {
			rv.Rating = opts.rating
		}
	} else {
		final, err := tea.NewProgram(NewReviewFormModel(platform)).Run()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "run form")
		}
		m := final.(ReviewFormModel)
		if !m.Done() {
			printInfo("Cancelled")
			return nil
		}
		if rv, err = m.Review(); err != nil {
			return err
		}
	}

	rv.SetDefaults(time.Now())
	if err := rv.Validate(); err != nil {
		return err
	}
	if err := review.Save(path, rv); err != nil {
		return err
	}

	printSuccess("Created %s review", rv.Platform.Style().Name)
	printFile(path)
	printNextStep("Export it", "reviewcraft export "+path)
	return nil
}
