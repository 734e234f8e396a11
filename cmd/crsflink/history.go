package main

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robotalks/crsflink/pkg/env"
	"github.com/robotalks/crsflink/pkg/statlog"
)

var (
	historyCount    int
	historySessions bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded watchdog intervals",
		Args:  cobra.NoArgs,
		RunE:  showHistory,
	}
)

func showHistory(cmd *cobra.Command, _ []string) error {
	conf := env.Default()
	if conf.StatsDB == "" {
		return fmt.Errorf("--stats-db or CRSF_STATS_DB required")
	}
	r, err := statlog.Load(conf.StatsDB)
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	if historySessions {
		sessions, err := r.Sessions()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Fprintf(out, "%s %s\n", s.ID, humanize.Time(statlog.FromMillis(s.Started)))
		}
		return nil
	}

	entries, err := r.Recent(historyCount)
	if err != nil {
		return err
	}
	for _, e := range entries {
		state := "down"
		if e.Connected {
			state = "up"
		}
		fmt.Fprintf(out, "%s %-16s %8s %-4s good %-6d bad %-6d",
			e.Session[:8], humanize.Time(e.Time()), humanize.SI(float64(e.Baud), "Bd"), state, e.Good, e.Bad)
		if e.Rotated {
			fmt.Fprint(out, " rotated")
		}
		fmt.Fprintln(out)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "Number of intervals.")
	historyCmd.Flags().BoolVar(&historySessions, "sessions", historySessions, "List sessions instead.")
	rootCmd.AddCommand(historyCmd)
}
