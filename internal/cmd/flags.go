package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagAlias adds a hidden second name for an existing flag, bound to the same
// value (e.g. --url for --base-url).
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		return
	}
	fs.AddFlag(&pflag.Flag{
		Name:        alias,
		Usage:       f.Usage,
		Value:       f.Value,
		DefValue:    f.DefValue,
		NoOptDefVal: f.NoOptDefVal,
		Hidden:      true,
	})
}

// providerFlag registers --provider/-p with provider id completion.
func providerFlag(cmd *cobra.Command, target *string, usage string) {
	cmd.Flags().StringVarP(target, "provider", "p", "", usage)
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviderIDs)
}
