package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/provider"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for llmctl.

Bash:
  $ source <(llmctl completion bash)
  # Persist for new shells (Linux):
  $ llmctl completion bash > /etc/bash_completion.d/llmctl

Zsh:
  $ llmctl completion zsh > "${fpath[1]}/_llmctl"

Fish:
  $ llmctl completion fish > ~/.config/fish/completions/llmctl.fish

PowerShell:
  PS> llmctl completion powershell | Out-String | Invoke-Expression
`,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := stdoutFromContext(cmd.Context())
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell %q", args[0])
			}
		},
	}
}

// completeProviderIDs completes the first positional argument with configured provider ids.
func completeProviderIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var ids []string
	for _, p := range cfg.Providers {
		if strings.HasPrefix(p.ID, toComplete) {
			ids = append(ids, p.ID+"\t"+p.DisplayName())
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

func completeStrategies(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeProviderIDs(cmd, args, toComplete)
	}
	out := make([]string, 0, len(provider.Strategies))
	for _, s := range provider.Strategies {
		out = append(out, string(s)+"\t"+s.Label())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
