package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/extractor"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/retry"
)

// sampleReports bounds a --sample run.
const sampleReports = 10

func newProcessCmd() *cobra.Command {
	var (
		batch   int
		maxReps int
		workers int
		sample  bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract structured data from scraped reports",
		Long: `Runs every unprocessed raw report through the extraction model and
stores the structured result. Only the backlog is touched; reports that
already have a processed row are never sent again.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()

			if cfg.Extractor.APIKey == "" {
				return errors.New("OPENAI_API_KEY is not set; add it to .env or the environment")
			}

			pcfg := extractor.Config{
				BatchSize:  cfg.Extractor.BatchSize,
				MaxReports: maxReps,
				Workers:    cfg.Extractor.Workers,
			}
			if cmd.Flags().Changed("batch") {
				pcfg.BatchSize = batch
			}
			if cmd.Flags().Changed("workers") {
				pcfg.Workers = workers
			}
			if sample {
				pcfg.BatchSize = sampleReports
				pcfg.MaxReports = sampleReports
			}

			client := extractor.NewClient(extractor.ClientConfig{
				APIKey:  cfg.Extractor.APIKey,
				BaseURL: cfg.Extractor.BaseURL,
				Model:   cfg.Extractor.Model,
				Timeout: cfg.ExtractionTimeout(),
			})

			retryCfg := retry.Config{
				MaxAttempts: cfg.Extractor.MaxAttempts,
				BaseDelay:   time.Duration(cfg.Extractor.BackoffBaseMs) * time.Millisecond,
				MaxDelay:    time.Duration(cfg.Extractor.BackoffMaxMs) * time.Millisecond,
				Logger:      a.Logger(),
			}

			proc := extractor.New(a.Store(), client, pcfg, retryCfg, a.Logger())
			sum, err := proc.Run(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger().Info("processing finished",
				zap.Int("processed", sum.Processed),
				zap.Int("errors", sum.Errors),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 100, "batch size for processing")
	cmd.Flags().IntVar(&maxReps, "max", 0, "max reports to process (default: all)")
	cmd.Flags().IntVar(&workers, "workers", 10, "number of concurrent extraction calls")
	cmd.Flags().BoolVar(&sample, "sample", false, "process only 10 reports as a sample")

	return cmd
}
