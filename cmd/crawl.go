package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/booth-beacon/beacon-crawler/internal/adapters"
	"github.com/booth-beacon/beacon-crawler/internal/config"
	"github.com/booth-beacon/beacon-crawler/internal/extract"
	"github.com/booth-beacon/beacon-crawler/internal/fetch"
	"github.com/booth-beacon/beacon-crawler/internal/monitoring"
	"github.com/booth-beacon/beacon-crawler/internal/normalize"
	"github.com/booth-beacon/beacon-crawler/internal/orchestrator"
	"github.com/booth-beacon/beacon-crawler/internal/reconcile"
	"github.com/booth-beacon/beacon-crawler/internal/resilience"
	"github.com/booth-beacon/beacon-crawler/internal/store"
	anthropicpkg "github.com/booth-beacon/beacon-crawler/pkg/anthropic"
	"github.com/booth-beacon/beacon-crawler/pkg/firecrawl"
)

var (
	crawlSources []string
	crawlDryRun  bool
	crawlLimit   int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl configured sources and reconcile booth listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sources, err := config.LoadSources(cfg.Sources.File)
		if err != nil {
			return err
		}
		sources, err = config.FilterSources(sources, crawlSources)
		if err != nil {
			return err
		}
		if crawlLimit > 0 && crawlLimit < len(sources) {
			sources = sources[:crawlLimit]
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		if crawlDryRun {
			st = store.DryRun(st)
		}

		if cfg.Firecrawl.Key == "" {
			return eris.New("firecrawl API key is required (BEACON_FIRECRAWL_KEY)")
		}
		firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		fetcher := fetch.NewFirecrawl(firecrawlClient, fetch.Config{
			Retry:        resilience.DefaultPolicy(),
			Breaker:      resilience.NewBreaker("firecrawl", cfg.Crawl.BreakerThreshold, 30*time.Second),
			PollInterval: time.Duration(cfg.Crawl.PollSecs) * time.Second,
			CrawlTimeout: time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
			MaxPages:     cfg.Crawl.MaxPages,
		})

		var extractor orchestrator.CandidateExtractor
		if cfg.Anthropic.Key != "" {
			anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
			extractor = extract.New(anthropicClient, cfg.Anthropic.Model)
		}

		var alerter *monitoring.Alerter
		if cfg.Monitoring.WebhookURL != "" {
			alerter = monitoring.NewAlerter(cfg.Monitoring.WebhookURL)
			// Async deliveries must land before the process exits.
			defer alerter.Wait()
		}
		sink := monitoring.NewSink(st, alerter)

		orch := orchestrator.New(
			fetcher,
			adapters.Default(),
			extractor,
			normalize.New(normalize.DefaultRules()),
			reconcile.NewEngine(st),
			sink,
			orchestrator.WithSourcePause(time.Duration(cfg.Crawl.SourcePauseSecs)*time.Second),
		)

		summary, err := orch.Run(ctx, sources)
		if err != nil {
			return eris.Wrap(err, "crawl run")
		}

		for _, o := range summary.Outcomes {
			status := "ok"
			if o.Failed() {
				status = "FAILED"
			}
			fmt.Printf("%-20s %-8s candidates=%-4d inserted=%-4d merged=%-4d skipped=%-4d rejected=%-4d %s\n",
				o.SourceName, status, o.Candidates, o.Inserted, o.Merged, o.Skipped, o.Rejected,
				o.Duration.Round(time.Millisecond))
		}
		if n := summary.Failures(); n > 0 {
			return eris.Errorf("%d source(s) failed", n)
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringSliceVar(&crawlSources, "source", nil, "crawl only the named source(s)")
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "log writes instead of persisting them")
	crawlCmd.Flags().IntVar(&crawlLimit, "limit", 0, "crawl at most N sources")
	rootCmd.AddCommand(crawlCmd)
}
