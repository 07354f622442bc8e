package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/scraper"
)

// samplePages bounds a --sample run.
const samplePages = 5

func newScrapeCmd() *cobra.Command {
	var (
		pages  int
		delay  float64
		sample bool
		noAuth bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape fishing reports from the forum",
		Long: `Pages through the forum's fishing-report listing and stores every post
it has not seen before. Re-running is safe; known posts are skipped.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()

			maxPages := cfg.Scraper.MaxPages
			if pages > 0 {
				maxPages = pages
			}
			if sample {
				maxPages = samplePages
			}

			scrapeDelay := cfg.ScrapeDelay()
			if cmd.Flags().Changed("delay") {
				scrapeDelay = time.Duration(delay * float64(time.Second))
			}

			s := scraper.New(scraper.Config{
				BaseURL:        cfg.Scraper.BaseURL,
				LoginPageURL:   cfg.Scraper.LoginPageURL,
				LoginURL:       cfg.Scraper.LoginURL,
				UserAgent:      cfg.Scraper.UserAgent,
				Email:          cfg.Scraper.Email,
				Password:       cfg.Scraper.Password,
				RecordsPerPage: cfg.Scraper.RecordsPerPage,
				Delay:          scrapeDelay,
				MaxPages:       maxPages,
				Authenticate:   !noAuth,
			}, a.Store(), a.Logger())

			sum, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger().Info("scrape finished",
				zap.Int("pages", sum.PagesFetched),
				zap.Int("new_reports", sum.PostsInserted),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "max pages to scrape (default: all)")
	cmd.Flags().Float64Var(&delay, "delay", 1.0, "delay between requests in seconds")
	cmd.Flags().BoolVar(&sample, "sample", false, "scrape only 5 pages as a sample")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "skip authentication (limited to recent reports)")

	return cmd
}
