package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/booth-beacon/beacon-crawler/internal/enrich"
	"github.com/booth-beacon/beacon-crawler/pkg/geocode"
)

var geocodeBatch int

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Backfill coordinates for booths that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := []geocode.Option{
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
		}
		if cfg.Geocode.GoogleAPIKey != "" {
			opts = append(opts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey))
		}
		geocoder := geocode.NewClient(opts...)

		batch := geocodeBatch
		if batch <= 0 {
			batch = cfg.Geocode.BatchSize
		}

		enricher := enrich.New(st, geocoder, enrich.WithConcurrency(cfg.Geocode.Concurrency))
		stats, err := enricher.Run(ctx, batch)
		if err != nil {
			return err
		}

		fmt.Printf("scanned=%d geocoded=%d unmatched=%d low_confidence=%d errors=%d\n",
			stats.Scanned, stats.Geocoded, stats.Unmatched, stats.LowGrade, stats.Errors)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeBatch, "batch", 0, "geocode at most N booths (default from config)")
	rootCmd.AddCommand(geocodeCmd)
}
