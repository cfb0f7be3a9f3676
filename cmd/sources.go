package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/booth-beacon/beacon-crawler/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the configured source registry",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := config.LoadSources(cfg.Sources.File)
		if err != nil {
			return err
		}
		for _, s := range sources {
			state := "enabled"
			if s.Disabled {
				state = "disabled"
			}
			fmt.Printf("%-20s %-7s %-9s %s\n", s.Name, s.Mode, state, s.URL)
		}
		return nil
	},
}

var sourcesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent run history per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sources, err := config.LoadSources(cfg.Sources.File)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		total, err := st.CountBooths(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("booths: %d\n\n", total)

		for _, s := range sources {
			runs, err := st.ListRunOutcomes(ctx, s.Name, 3)
			if err != nil {
				return err
			}
			fmt.Printf("%s:\n", s.Name)
			if len(runs) == 0 {
				fmt.Println("  (no runs recorded)")
				continue
			}
			for _, r := range runs {
				line := fmt.Sprintf("  %s candidates=%d inserted=%d merged=%d skipped=%d rejected=%d",
					r.StartedAt.Format(time.RFC3339), r.Candidates, r.Inserted, r.Merged, r.Skipped, r.Rejected)
				if r.Failed() {
					line += " error=" + r.Error
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesStatusCmd)
	rootCmd.AddCommand(sourcesCmd)
}
