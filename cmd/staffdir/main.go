package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"staffdir-scraper/internal/app"
	"staffdir-scraper/internal/config"
	"staffdir-scraper/internal/credentials"
	"staffdir-scraper/internal/images"
	"staffdir-scraper/internal/observability"
	"staffdir-scraper/internal/scraper"
	"staffdir-scraper/internal/session"
	"staffdir-scraper/internal/storage"
	"staffdir-scraper/internal/storage/ledger"
)

var (
	flagConfig          string
	flagCredentialsFile string
	flagHeadless        bool
	flagDownloadImages  bool
	flagForceFullRescan bool
	flagMaxConcurrency  int
	flagTimeoutMS       int
	flagPrompt          bool
)

func main() {
	root := &cobra.Command{
		Use:           "staffdir",
		Short:         "Incremental scraper for an authenticated staff directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one scrape run",
		RunE:  runScrape,
	}
	runCmd.Flags().StringVarP(&flagConfig, "config", "c", "configs/config.yaml", "path to config file")
	runCmd.Flags().StringVar(&flagCredentialsFile, "credentials-file", "", "override credentials file path")
	runCmd.Flags().BoolVar(&flagHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().BoolVar(&flagDownloadImages, "download-images", true, "download profile images")
	runCmd.Flags().BoolVar(&flagForceFullRescan, "force-full-rescan", false, "re-extract every entity regardless of staleness")
	runCmd.Flags().IntVar(&flagMaxConcurrency, "max-concurrency", 0, "override worker pool size")
	runCmd.Flags().IntVar(&flagTimeoutMS, "timeout-ms", 0, "override per-page navigation timeout")
	runCmd.Flags().BoolVar(&flagPrompt, "prompt", false, "prompt for credentials when env and file are empty")
	root.AddCommand(runCmd)

	lastCmd := &cobra.Command{
		Use:   "last-run",
		Short: "Print the most recent run summary from the ledger",
		RunE:  showLastRun,
	}
	lastCmd.Flags().StringVarP(&flagConfig, "config", "c", "configs/config.yaml", "path to config file")
	root.AddCommand(lastCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "staffdir: %v\n", err)
		os.Exit(1)
	}
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	selectors, err := scraper.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return err
	}

	var prompt credentials.PromptFunc
	if flagPrompt {
		prompt = stdinPrompt
	}
	resolver := credentials.NewResolver(cfg.Credentials, prompt, logger)

	store, err := storage.NewStore(cfg.Output.ArtifactsDir)
	if err != nil {
		return err
	}

	runLedger, err := ledger.Open(cfg.Output.LedgerPath)
	if err != nil {
		return err
	}
	defer runLedger.Close() //nolint:errcheck

	var imageFetcher app.ImageFetcher
	if cfg.Scrape.DownloadImages {
		dl, err := images.NewDownloader(cfg.Output.ImagesDir, cfg.Browser.UserAgent, cfg.GetPageTimeout(), logger)
		if err != nil {
			return err
		}
		imageFetcher = dl
	}

	driver := session.NewDriver(cfg, logger)
	extractor := scraper.NewExtractor(selectors, scraper.AllSections(), logger)

	orch := app.NewOrchestrator(cfg, logger, selectors, resolver, driver, extractor, store, runLedger, imageFetcher)

	ctx, cancel := app.RunContext(logger, cfg.GetRunTimeout())
	defer cancel()

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Error("run aborted", zap.Error(err))
		return err
	}

	fmt.Printf("run complete: attempted=%d succeeded=%d partial=%d failed=%d skipped=%d elapsed=%s\n",
		result.Attempted, result.Succeeded, result.Partial, result.Failed, result.Skipped,
		result.Elapsed.Round(1e6))
	return nil
}

func showLastRun(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	runLedger, err := ledger.Open(cfg.Output.LedgerPath)
	if err != nil {
		return err
	}
	defer runLedger.Close() //nolint:errcheck

	run, err := runLedger.LastRun(context.Background())
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("no runs recorded")
		return nil
	}
	fmt.Printf("started=%s attempted=%d succeeded=%d partial=%d failed=%d skipped=%d elapsed=%s\n",
		run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		run.Attempted, run.Succeeded, run.Partial, run.Failed, run.Skipped, run.Elapsed)
	return nil
}

// applyFlags layers explicitly set CLI flags on top of the file config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("credentials-file") {
		cfg.Credentials.File = flagCredentialsFile
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if cmd.Flags().Changed("download-images") {
		cfg.Scrape.DownloadImages = flagDownloadImages
	}
	if cmd.Flags().Changed("force-full-rescan") {
		cfg.Scrape.ForceFullRescan = flagForceFullRescan
	}
	if cmd.Flags().Changed("max-concurrency") && flagMaxConcurrency > 0 {
		cfg.Scrape.MaxConcurrency = flagMaxConcurrency
	}
	if cmd.Flags().Changed("timeout-ms") && flagTimeoutMS > 0 {
		cfg.Browser.PageTimeoutMS = flagTimeoutMS
	}
}

func stdinPrompt() (credentials.Set, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprint(os.Stderr, "identity: ")
	identity, err := reader.ReadString('\n')
	if err != nil {
		return credentials.Set{}, err
	}
	fmt.Fprint(os.Stderr, "secret: ")
	secret, err := reader.ReadString('\n')
	if err != nil {
		return credentials.Set{}, err
	}

	return credentials.Set{
		Identity: strings.TrimSpace(identity),
		Secret:   strings.TrimSpace(secret),
	}, nil
}
