package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backsim",
	Short: "A deterministic backtesting engine for algorithmic trading strategies",
	Long: `Backsim replays historical market data through a simulated venue with
probabilistic fill and slippage modeling.

It provides tools for:
  - Backtesting strategies over merged tick and bar streams
  - Deterministic, seedable replays with byte-identical order histories
  - FX-correct multi-currency P/L accounting and margin simulation
  - Journaling orders, fills and equity curves to CSV or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
