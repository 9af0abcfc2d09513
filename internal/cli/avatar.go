package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/avatar"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

// avatarOpts holds the avatar command flags.
type avatarOpts struct {
	out  string
	size int
}

// avatarCommand creates the avatar command.
func (c *CLI) avatarCommand() *cobra.Command {
	opts := avatarOpts{}

	cmd := &cobra.Command{
		Use:   "avatar <name>",
		Short: "Render the initials avatar used as an image fallback",
		Example: `  reviewcraft avatar "Jane Doe"
  reviewcraft avatar "Jane Doe" --size 96 -o jane.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAvatar(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default <initials>.png)")
	cmd.Flags().IntVar(&opts.size, "size", avatar.DefaultSize, "edge length in pixels")

	return cmd
}

func (c *CLI) runAvatar(name string, opts avatarOpts) error {
	if opts.size <= 0 || opts.size > 2048 {
		return errors.New(errors.ErrCodeInvalidInput, "size must be between 1 and 2048")
	}
	initials := avatar.Initials(name)
	png, err := avatar.Render(initials, avatar.Color(name), opts.size)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "render avatar")
	}

	out := opts.out
	if out == "" {
		out = initials + ".png"
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", out)
	}

	printSuccess("Avatar %s", StyleHighlight.Render(initials))
	printFile(out)
	printKeyValue("Color", "#"+avatar.ColorHex(name))
	printKeyValue("Remote", StyleLink.Render(review.AvatarURL(name)))
	return nil
}
