package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotalks/crsflink/pkg/transport/serialport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := serialport.List()
		if err != nil {
			return err
		}
		for _, name := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
