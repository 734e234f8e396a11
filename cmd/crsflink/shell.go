package main

import (
	"github.com/spf13/cobra"

	"github.com/robotalks/crsflink/pkg/cli/sh"
	"github.com/robotalks/crsflink/pkg/env"
)

var (
	shellNoStart bool

	shellCmd = &cobra.Command{
		Use:   "shell [COMMAND ARGS...]",
		Short: "Interactive shell on a running link",
		Long: `Starts the link and opens an interactive shell. With arguments the
command is evaluated once and the shell exits.`,
		Args: cobra.ArbitraryArgs,
		Run: func(_ *cobra.Command, args []string) {
			sh.New(env.Default()).WithAutoStart(!shellNoStart).Run(args...)
		},
	}
)

func init() {
	sh.SetupFlags(shellCmd.Flags())
	shellCmd.Flags().BoolVar(&shellNoStart, "no-start", shellNoStart, "Do not start the link, use the start command.")
	rootCmd.AddCommand(shellCmd)
}
