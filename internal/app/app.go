package app

import (
	"github.com/spf13/cobra"

	"github.com/JijoJohny/SolGuard/internal/cli"
)

var version = "dev"

func BuildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:     "solguard",
		Short:   "Static analysis for Solana programs",
		Version: version,
	}
	cli.AddCommands(root)
	return root
}
