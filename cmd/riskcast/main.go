// Package main is the riskcast CLI.
//
//	riskcast serve                  # HTTP API, model-event consumer, queued training
//	riskcast train --tickers AAPL   # one training run in the foreground
//	riskcast worker                 # queued training only
package main

import (
	"os"

	"RiskCast/cmd/riskcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
