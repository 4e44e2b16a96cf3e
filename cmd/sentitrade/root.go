package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/metrics"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

// newRootCmd builds the command tree. cleanup releases what the pre-run
// opened and is safe to call whether or not a command ran.
func newRootCmd() (rootCmd *cobra.Command, cleanup func()) {
	var (
		configPath  string
		metricsAddr string
		a           *app
		stopMetrics func()
	)

	rootCmd = &cobra.Command{
		Use:   "sentitrade",
		Short: "Sentiment-driven trading signals and backtests",
		Long: `sentitrade scores news and social text about a ticker with an external
sentiment model, fuses it with technical indicators into buy/sell/hold signals,
and replays stored sentiment against daily bars to backtest the strategy.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeSystem(); err != nil {
				return err
			}
			ctx := cmd.Context()
			compressOldLogs(ctx)

			cfg, err := loadConfig(ctx, configPath)
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = cfg.Metrics.Addr
			}

			rec := metrics.New()
			if metricsAddr != "" {
				stopMetrics = serveMetrics(ctx, metricsAddr, rec)
			}
			a, err = newApp(ctx, cfg, rec)
			return err
		},
	}
	cleanup = func() {
		if a != nil {
			a.Close()
		}
		if stopMetrics != nil {
			stopMetrics()
		}
		_ = trace.Shutdown(context.Background())
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	appFn := func() *app { return a }
	rootCmd.AddCommand(newRecommendCmd(appFn))
	rootCmd.AddCommand(newBacktestCmd(appFn))
	rootCmd.AddCommand(newUsageCmd(appFn))
	rootCmd.AddCommand(newSentimentCmd(appFn))
	rootCmd.AddCommand(newHistoryCmd(appFn))

	return rootCmd, cleanup
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newRecommendCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend TICKER...",
		Short: "Score fresh sentiment and print a trading recommendation",
		Example: `  sentitrade recommend AAPL
  sentitrade recommend AAPL MSFT NVDA`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			var errs []error
			for _, ticker := range args {
				rec, err := a.engine.Recommend(cmd.Context(), ticker)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
					continue
				}
				if err := printJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func newBacktestCmd(appFn func() *app) *cobra.Command {
	var fromStr, toStr string

	cmd := &cobra.Command{
		Use:   "backtest TICKER",
		Short: "Replay stored sentiment against daily bars",
		Long: `Run a long-only daily backtest for TICKER between --from and --to using the
sentiment history in storage. Prints the result and writes CSV reports.`,
		Example: `  sentitrade backtest AAPL --from 2024-01-01 --to 2024-06-30`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now().UTC().Truncate(24 * time.Hour)
			to, err := parseDay(toStr, today)
			if err != nil {
				return err
			}
			from, err := parseDay(fromStr, to.AddDate(-1, 0, 0))
			if err != nil {
				return err
			}

			res, err := appFn().engine.Backtest(cmd.Context(), args[0], from, to)
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "Start date YYYY-MM-DD (default one year before --to)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date YYYY-MM-DD (default today)")
	return cmd
}

func newUsageCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show scorer request and cost usage against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), appFn().scorer.UsageStats())
		},
	}
}

func newSentimentCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment TICKER",
		Short: "Score fresh text and print the aggregated sentiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := appFn().engine.Sentiment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func newHistoryCmd(appFn func() *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history TICKER",
		Short: "Print stored daily sentiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := appFn().engine.History(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			if len(hist) == 0 {
				logger.Info(cmd.Context(), "No stored sentiment", "ticker", args[0], "days", days)
				hist = []types.DailySentiment{}
			}
			return printJSON(cmd.OutOrStdout(), hist)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Number of days to look back")
	return cmd
}
