package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/buildinfo"
)

const appName = "reviewcraft"

// CLI is the state shared by every subcommand.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
}

// New returns a CLI logging to w at info level. --verbose lowers it to debug.
func New(w io.Writer) *CLI {
	return &CLI{Logger: newLogger(w, log.InfoLevel)}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Render review mockups to images",
		Long: `reviewcraft renders a review mockup in a headless browser and exports
the card as a PNG or JPEG file, or copies it to the clipboard.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun,
	}
	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/reviewcraft/config.toml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.exportCommand(),
		c.copyCommand(),
		c.serveCommand(),
		c.newCommand(),
		c.avatarCommand(),
		c.platformsCommand(),
		c.cacheCommand(),
		c.completionCommand(),
	)
	return root
}

func (c *CLI) preRun(cmd *cobra.Command, _ []string) error {
	if c.verbose {
		c.Logger.SetLevel(log.DebugLevel)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

func (c *CLI) config() (*Config, error) {
	return loadConfig(c.configPath)
}

// cacheDir is $XDG_CACHE_HOME/reviewcraft, falling back to ~/.cache.
func cacheDir() (string, error) { return xdgDir("XDG_CACHE_HOME", ".cache") }

// configDir is $XDG_CONFIG_HOME/reviewcraft, falling back to ~/.config.
func configDir() (string, error) { return xdgDir("XDG_CONFIG_HOME", ".config") }

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
