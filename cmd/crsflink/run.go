package main

import (
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/crsflink/pkg/bridge"
	"github.com/robotalks/crsflink/pkg/env"
	fx "github.com/robotalks/crsflink/pkg/framework"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the link until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		b, err := bridge.New(env.Default())
		if err != nil {
			return err
		}
		defer b.Close()
		glog.Infof("%s (%s) started", bridge.Version, bridge.Commit)
		return fx.NewRunner().HandleSignals().Go(fx.NamedRun("bridge", b)).Wait()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
