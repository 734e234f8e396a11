package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"

	"github.com/robotalks/crsflink/pkg/env"
)

//go-build: CGO_ENABLED=0

var rootCmd = &cobra.Command{
	Use:   "crsflink",
	Short: "CRSF link between a handset and a radio",
	Long: `crsflink speaks CRSF to a handset on a serial line or a websocket
simulator. It answers the parameter menu, keeps the handset in sync with
the radio packet timing and relays MSP messages over the radio link.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// glog reads its flags from the go flag set.
		flag.CommandLine.Parse(nil)
	},
}

func init() {
	env.SetupFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
