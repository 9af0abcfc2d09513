package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/reviewcraft/pkg/review"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for reviewcraft.

Bash:
  $ source <(reviewcraft completion bash)

Zsh:
  $ reviewcraft completion zsh > "${fpath[1]}/_reviewcraft"

Fish:
  $ reviewcraft completion fish > ~/.config/fish/completions/reviewcraft.fish

PowerShell:
  PS> reviewcraft completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeReviewFile offers review files for the first positional argument.
func completeReviewFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"json", "yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
}

// completePlatform offers platform ids with their display names.
func completePlatform(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, p := range review.Platforms() {
		out = append(out, string(p)+"\t"+p.Style().Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeFormat offers the export formats.
func completeFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"png", "jpeg"}, cobra.ShellCompDirectiveNoFileComp
}
