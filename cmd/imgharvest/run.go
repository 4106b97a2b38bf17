package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgharvest/pkg/config"
	"imgharvest/pkg/harvest"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/retry"
	"imgharvest/pkg/ui"
	"imgharvest/pkg/ui/tui"
)

var (
	// Run command flags
	outputDir         string
	maxDelay          time.Duration
	concurrency       int
	requestsPerMinute int
	fetchTimeout      time.Duration
	cardSelector      string
	titleSelector     string
	imageSelector     string
	retryFailed       int
	useTUI            bool
	notify            bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <listing-url>",
	Short: "Harvest the images of a listing page",
	Long: `Fetch a listing page, extract one record per card and download every
image into the output directory.

Records are downloaded in page order with a random pause of up to
--max-delay between downloads. A failed record never stops the run; the
report printed at the end lists every failure with its reason.`,
	Example: `  # Harvest into ./images with the default selectors
  imgharvest run https://example.com/gallery

  # Custom output directory and a slower pace
  imgharvest run https://example.com/gallery -o ./gallery --max-delay 5s

  # Four workers, at most 30 requests per minute, retry failures twice
  imgharvest run https://example.com/gallery --concurrency 4 --requests-per-minute 30 --retry-failed 2

  # Different markup
  imgharvest run https://example.com/news --card-selector article --title-selector h2`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)

	// Also on the root command so "imgharvest <url>" works
	addRunFlags(rootCmd)
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if len(args) > 1 {
			return fmt.Errorf("expected one listing URL, got %d arguments", len(args))
		}
		return runHarvest(cmd, args)
	}
}

func addRunFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	cmd.Flags().StringVarP(&outputDir, "output", "o", defaults.Pipeline.OutputDir, "output directory for images")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", defaults.Pipeline.MaxDelay, "upper bound of the random pause between downloads")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaults.Pipeline.Concurrency, "number of concurrent downloads")
	cmd.Flags().IntVar(&requestsPerMinute, "requests-per-minute", defaults.Pipeline.RequestsPerMinute, "request limit per minute (0 disables)")
	cmd.Flags().DurationVar(&fetchTimeout, "timeout", defaults.HTTP.Timeout, "timeout for each HTTP request")
	cmd.Flags().StringVar(&cardSelector, "card-selector", "", "CSS selector of one listing card")
	cmd.Flags().StringVar(&titleSelector, "title-selector", "", "CSS selector of the title inside a card")
	cmd.Flags().StringVar(&imageSelector, "image-selector", "", "CSS selector of the image inside a card")
	cmd.Flags().IntVar(&retryFailed, "retry-failed", 0, "retry failed records up to N more times")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "full-screen progress view")
	cmd.Flags().BoolVar(&notify, "notify", false, "desktop notification when the run ends")
}

// runFlags collects the flags the user actually set
func runFlags(cmd *cobra.Command, baseURL string) map[string]interface{} {
	flags := map[string]interface{}{"base-url": baseURL}
	set := func(name string, value interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	set("output", outputDir)
	set("max-delay", maxDelay)
	set("concurrency", concurrency)
	set("requests-per-minute", requestsPerMinute)
	set("timeout", fetchTimeout)
	set("card-selector", cardSelector)
	set("title-selector", titleSelector)
	set("image-selector", imageSelector)
	set("retry-failed", retryFailed)
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	baseURL := strings.TrimSpace(args[0])

	cfg, err := config.Load(configFile, runFlags(cmd, baseURL))
	if err != nil {
		return err
	}

	interactive := !quiet && term.IsTerminal(int(os.Stdout.Fd()))
	if (useTUI || (interactive && !verbose)) && logLevel == "" && cfg.Logging.File == "" {
		// Keep stderr logs from tearing the progress display
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("imgharvest starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *harvest.Report
	switch {
	case useTUI:
		report, err = runWithTUI(ctx, cfg, log)
	case interactive && !verbose:
		ui.PrintBanner()
		ui.PrintInfo("Listing", baseURL)
		ui.PrintInfo("Output", cfg.Pipeline.OutputDir)
		progress := ui.NewProgress(os.Stdout)
		report, err = harvest.NewFromConfig(cfg, log, ui.Hooks(progress)...).Run(ctx)
	default:
		report, err = harvest.NewFromConfig(cfg, log).Run(ctx)
	}

	if err == nil && cfg.Retry.MaxAttempts > 0 && report.Failed() > 0 {
		report, err = retryReport(ctx, cfg, log, report)
	}

	if !quiet {
		fmt.Println()
		ui.PrintReport(os.Stdout, report)
	}
	if notify {
		ui.NewNotifier().NotifyReport(report)
	}

	if err != nil {
		return err
	}
	if report.Failed() > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d records failed", report.Failed(), len(report.Records)))
	} else {
		ui.PrintSuccess(fmt.Sprintf("Saved %d images to %s", report.Succeeded(), cfg.Pipeline.OutputDir))
	}
	return nil
}

// runWithTUI runs the pipeline in the background while the TUI owns the terminal
func runWithTUI(ctx context.Context, cfg *config.Config, log logger.Logger) (*harvest.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.New(cfg.Pipeline.Concurrency, cancel)
	pipeline := harvest.NewFromConfig(cfg, log, ui.Hooks(view)...)

	type runResult struct {
		report *harvest.Report
		err    error
	}
	done := make(chan runResult, 1)
	go func() {
		report, err := pipeline.Run(ctx)
		view.Finish(report, err)
		done <- runResult{report, err}
	}()

	if err := view.Start(); err != nil {
		cancel()
		res := <-done
		return res.report, fmt.Errorf("terminal UI failed: %w", err)
	}

	// The user quit; cancel stops the run after the in-flight record
	cancel()
	res := <-done
	return res.report, res.err
}

// retryReport retries the retryable failures of report with backoff
func retryReport(ctx context.Context, cfg *config.Config, log logger.Logger, report *harvest.Report) (*harvest.Report, error) {
	ui.PrintHighlight(fmt.Sprintf("\nRetrying %d failed record(s)", report.Failed()))

	rc := retry.FromConfig(cfg.Retry, log)
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		ui.PrintWarning(fmt.Sprintf("Attempt %d still failing, next try in %s", attempt, ui.FormatDuration(delay)), err)
	}

	retried, err := harvest.NewFromConfig(cfg, log).RetryFailed(ctx, report, rc)
	var pending *harvest.PendingError
	if errors.As(err, &pending) || errors.Is(err, context.Canceled) {
		// Remaining failures are already in the report
		return retried, nil
	}
	return retried, err
}
