package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backsim/backtest"
	"github.com/rustyeddy/backsim/config"
	"github.com/rustyeddy/backsim/internal/logx"
	"github.com/rustyeddy/backsim/timeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a configuration file",
	Long: `Replay historical market data through the simulated venue and the
configured strategies.

Data sources are given as SYMBOL=path pairs; tick CSVs carry
time,instrument,bid,ask[,bid_size,ask_size] rows and bar CSVs carry
time,instrument,open,high,low,close[,volume] rows, sorted by time.

Example:
  backsim run --config backtest.yaml --ticks EUR_USD=data/eurusd_ticks.csv
  backsim run --config backtest.yaml --bars EUR_USD=M1=data/eurusd_m1.csv`,
	RunE: runRun,
}

var (
	runConfigPath string
	runTickFiles  []string
	runBarFiles   []string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (required)")
	runCmd.Flags().StringArrayVarP(&runTickFiles, "ticks", "t", nil, "tick CSV as SYMBOL=path (repeatable)")
	runCmd.Flags().StringArrayVarP(&runBarFiles, "bars", "b", nil, "bar CSV as SYMBOL=RESOLUTION=path (repeatable)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	if len(runTickFiles) == 0 && len(runBarFiles) == 0 {
		return fmt.Errorf("at least one --ticks or --bars source is required")
	}

	log, err := logx.New(cfg.Logging.Console, cfg.Logging.Store, cfg.Logging.StorePath)
	if err != nil {
		return err
	}
	defer log.Sync()

	var streams []timeline.Stream
	for _, spec := range runTickFiles {
		symbol, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("bad --ticks spec %q (want SYMBOL=path)", spec)
		}
		s, err := loadTickStream(symbol, path)
		if err != nil {
			return fmt.Errorf("load ticks %s: %w", path, err)
		}
		streams = append(streams, s)
	}
	for _, spec := range runBarFiles {
		symbol, rest, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("bad --bars spec %q (want SYMBOL=RESOLUTION=path)", spec)
		}
		resName, path, ok := strings.Cut(rest, "=")
		if !ok {
			return fmt.Errorf("bad --bars spec %q (want SYMBOL=RESOLUTION=path)", spec)
		}
		res, err := parseResolution(resName)
		if err != nil {
			return err
		}
		s, err := loadBarStream(symbol, res, path)
		if err != nil {
			return fmt.Errorf("load bars %s: %w", path, err)
		}
		streams = append(streams, s)
	}

	engine, err := backtest.FromConfig(log, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := engine.Run(ctx, streams...)
	if err != nil {
		return err
	}

	fmt.Printf("\nBacktest complete (run %s)\n", res.RunID)
	fmt.Printf("  Window: %s .. %s (%d events)\n",
		res.Start.Format("2006-01-02 15:04:05"),
		res.Stop.Format("2006-01-02 15:04:05"),
		res.Events)
	fmt.Printf("  Orders: %d, Fills: %d\n", len(res.Orders), res.FillCount)
	fmt.Printf("  Balance: %s %s\n", res.Account.Balance.StringFixed(2), res.Account.Currency)
	fmt.Printf("  Equity: %s %s\n", res.Account.Equity.StringFixed(2), res.Account.Currency)
	fmt.Printf("  Margin Used: %s, Free Margin: %s\n",
		res.Account.MarginUsed.StringFixed(2), res.Account.FreeMargin.StringFixed(2))

	if len(res.HandlerErrors) > 0 {
		fmt.Println("  Strategy handler errors:")
		for name, n := range res.HandlerErrors {
			fmt.Printf("    %s: %d\n", name, n)
		}
	}
	return nil
}
