package cmd

import (
	"slices"

	"github.com/spf13/cobra"
)

type canonicalAliasRule struct {
	token   string
	aliases []string
}

var canonicalVerbAliasRules = []canonicalAliasRule{
	{token: "list", aliases: []string{"ls"}},
	{token: "show", aliases: []string{"get"}},
	{token: "edit", aliases: []string{"update"}},
	{token: "remove", aliases: []string{"rm", "delete"}},
	{token: "add", aliases: []string{"new"}},
	{token: "current", aliases: []string{"active"}},
	{token: "switch-token", aliases: []string{"switch", "st"}},
	{token: "sessions", aliases: []string{"session"}},
}

func applyCanonicalVerbAliases(root *cobra.Command) {
	if root == nil {
		return
	}
	addCanonicalVerbAliases(root)
	for _, sub := range root.Commands() {
		applyCanonicalVerbAliases(sub)
	}
}

func addCanonicalVerbAliases(cmd *cobra.Command) {
	for _, rule := range canonicalVerbAliasRules {
		if cmd.Name() != rule.token && !slices.Contains(cmd.Aliases, rule.token) {
			continue
		}
		for _, alias := range rule.aliases {
			addCommandAliasIfSafe(cmd, alias)
		}
	}
}

// addCommandAliasIfSafe skips aliases that a sibling already answers to,
// so "llmctl rm" and "llmctl provider rm" never become ambiguous.
func addCommandAliasIfSafe(cmd *cobra.Command, alias string) {
	if alias == "" || alias == cmd.Name() || slices.Contains(cmd.Aliases, alias) {
		return
	}
	if parent := cmd.Parent(); parent != nil {
		for _, sibling := range parent.Commands() {
			if sibling != cmd && (sibling.Name() == alias || slices.Contains(sibling.Aliases, alias)) {
				return
			}
		}
	}
	cmd.Aliases = append(cmd.Aliases, alias)
}
