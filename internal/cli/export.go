package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/pipeline"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/review"
	"github.com/matzehuels/reviewcraft/pkg/sink"
)

// exportOpts holds the export command flags.
type exportOpts struct {
	format string
	out    string
	name   string
	watch  bool
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOpts{}

	cmd := &cobra.Command{
		Use:   "export <review-file>",
		Short: "Render a review card to a PNG or JPEG file",
		Long: `Render the review described by a JSON, YAML or TOML file in a headless
browser and save the card as an image.

Cross-origin images are converted to inline data before capture; any image
that cannot be loaded is replaced with an initials avatar.`,
		Example: `  reviewcraft export review.yaml
  reviewcraft export review.json --format jpeg --out ./shots
  reviewcraft export review.toml --watch`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeReviewFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "image format: png or jpeg (default from config)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "file name without extension (default <platform>-review)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-export whenever the review file changes")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormat)

	return cmd
}

func (c *CLI) runExport(ctx context.Context, path string, opts exportOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if opts.format != "" {
		cfg.Export.Format = opts.format
	}
	if opts.out != "" {
		cfg.Export.OutDir = opts.out
	}
	format, err := raster.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}
	if opts.name != "" {
		if err := errors.ValidateFilename(opts.name); err != nil {
			return err
		}
	}

	rv, err := review.Load(path)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Starting browser...")
	spinner.Start()
	s, err := c.openSession(ctx, cfg, rv, sessionOptions{outDir: cfg.Export.OutDir})
	if err != nil {
		spinner.StopWithError("Browser failed to start")
		return err
	}
	spinner.Stop()
	defer s.Close()

	export := func(rv *review.Review) error {
		name := opts.name
		if name == "" {
			name = rv.DefaultFilename()
		}
		runCtx, cancel := context.WithTimeout(ctx, cfg.exportTimeout())
		defer cancel()

		prog := newProgress(c.Logger)
		spinner := newSpinnerWithContext(runCtx, "Rendering "+name+"...")
		spinner.Start()
		out, err := s.runner.Download(runCtx, review.ElementID, name, format)
		spinner.Stop()
		if err != nil {
			printError("%s", errors.Friendly(err))
			return err
		}
		prog.done("exported", "path", out.Path, "tier", out.Result.Tier, "run", out.RunID)
		printExport(out)
		return nil
	}

	if err := export(rv); err != nil && !opts.watch {
		return err
	}
	if !opts.watch {
		return nil
	}

	printInfo("Watching %s (Ctrl+C to stop)", path)
	return watchFile(ctx, path, func() {
		rv, err := review.Load(path)
		if err != nil {
			printWarning("%s", errors.UserMessage(err))
			return
		}
		if err := s.reload(ctx, rv); err != nil {
			printWarning("reload preview: %s", errors.UserMessage(err))
			return
		}
		_ = export(rv)
	})
}

// printExport prints the saved file and run statistics.
func printExport(out *pipeline.Outcome) {
	printSuccess("Saved %s", formatLabel(out.Result.Format))
	printFile(out.Path)
	printStats(out.Images.Total, out.Result.Tier, out.Stats)
}

// copyOpts holds the copy command flags.
type copyOpts struct {
	terminal bool
}

// copyCommand creates the copy command.
func (c *CLI) copyCommand() *cobra.Command {
	opts := copyOpts{}

	cmd := &cobra.Command{
		Use:   "copy <review-file>",
		Short: "Render a review card and copy it to the clipboard",
		Long: `Render the review card as a PNG and place it on the clipboard.

The image is written as an image entry when the clipboard accepts one,
otherwise as a text entry holding a data URI. With --terminal the data URI
is also offered to the terminal clipboard through an OSC 52 sequence.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeReviewFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCopy(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.terminal, "terminal", "t", false, "fall back to the terminal clipboard (OSC 52)")

	return cmd
}

func (c *CLI) runCopy(cmd *cobra.Command, path string, opts copyOpts) error {
	ctx := cmd.Context()
	cfg, err := c.config()
	if err != nil {
		return err
	}
	rv, err := review.Load(path)
	if err != nil {
		return err
	}

	so := sessionOptions{outDir: cfg.Export.OutDir}
	if opts.terminal {
		so.terminal = cmd.OutOrStdout()
	}

	spinner := newSpinnerWithContext(ctx, "Starting browser...")
	spinner.Start()
	s, err := c.openSession(ctx, cfg, rv, so)
	if err != nil {
		spinner.StopWithError("Browser failed to start")
		return err
	}
	defer s.Close()

	runCtx, cancel := context.WithTimeout(ctx, cfg.exportTimeout())
	defer cancel()

	spinner.SetMessage("Copying to clipboard...")
	out, err := s.runner.CopyToClipboard(runCtx, review.ElementID)
	spinner.Stop()
	if err != nil {
		printError("%s", errors.Friendly(err))
		return err
	}

	printSuccess("Copied to clipboard as %s", out.Representation)
	if out.Representation == sink.TextDataURI {
		if text, err := s.page.ReadText(runCtx); err == nil {
			printDetail("%d characters of text on the clipboard", len(text))
		}
	}
	printStats(out.Images.Total, out.Result.Tier, out.Stats)
	return nil
}

// formatLabel renders a format for display.
func formatLabel(f raster.Format) string {
	return fmt.Sprintf("%s (.%s)", f.MIME(), f.Ext())
}
