package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/proxy"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

// serveOpts holds the serve command flags.
type serveOpts struct {
	addr    string
	metrics bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve <review-file>",
		Short: "Serve the review preview and the image proxy",
		Long: `Serve the rendered review card together with the same-origin image proxy.
The preview is reloaded from disk whenever the review file changes.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeReviewFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "expose Prometheus metrics on /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, path string, opts serveOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.metrics {
		cfg.Server.Metrics = true
	}

	rv, err := review.Load(path)
	if err != nil {
		return err
	}

	backend, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer backend.Close()

	srv := newServer(cfg, rv, backend, cfg.Server.Addr, cfg.Server.Metrics, c.Logger)
	base, err := srv.Start(ctx)
	if err != nil {
		return err
	}

	printSuccess("Serving %s", rv.Platform.Style().Name+" review")
	printKeyValue("Preview", StyleLink.Render(base+"/preview"))
	printKeyValue("Proxy", base+proxy.Path+"?url=")
	if cfg.Server.Metrics {
		printKeyValue("Metrics", base+"/metrics")
	}
	printNewline()

	err = watchFile(ctx, path, func() {
		next, err := review.Load(path)
		if err != nil {
			printWarning("%s", errors.UserMessage(err))
			return
		}
		srv.SetReview(next)
		printInfo("Reloaded %s", path)
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}
