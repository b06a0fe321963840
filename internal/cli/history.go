package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/history"
)

var (
	historyConfig string
	historyCount  int
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyRecentCmd)
	historyCmd.AddCommand(historyFailuresCmd)

	historyCmd.PersistentFlags().StringVar(&historyConfig, "config", "", "Path to config YAML (default: ~/.runguard/config.yaml)")
	historyCmd.PersistentFlags().IntVarP(&historyCount, "count", "n", 20, "Number of runs to show")
	historyCmd.PersistentFlags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded run outcomes",
	Long: "Reads the local run-history database. The audit log is the\n" +
		"tamper-evident record; history is the fast queryable view.",
}

var historyRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryList((*history.Store).Recent)
	},
}

var historyFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show runs that were refused or exited nonzero",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryList((*history.Store).Failures)
	},
}

func runHistoryList(query func(*history.Store, int) ([]history.Run, error)) error {
	hc, err := loadHostConfig(historyConfig)
	if err != nil {
		return err
	}
	path := hc.History
	if path == "" {
		path, err = history.DefaultPath()
		if err != nil {
			return err
		}
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := query(store, historyCount)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	fmt.Printf("%-19s  %-10s  %-9s  %4s  %9s  %s\n",
		"STARTED", "RUN", "DECISION", "EXIT", "TIME", "COMMAND")
	for _, r := range runs {
		fmt.Printf("%-19s  %-10s  %-9s  %4d  %9s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			shortRunID(r.RunID),
			r.Decision,
			r.ExitCode,
			time.Duration(r.DurationMS)*time.Millisecond,
			truncateCommand(r.Command, 60),
		)
	}
	return nil
}

func shortRunID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func truncateCommand(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
