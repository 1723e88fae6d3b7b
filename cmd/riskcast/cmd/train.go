package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/usecase"
	"RiskCast/pkg/util"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	trainTickers string
	trainNoCache bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the training pipeline once",
	Long: `Ingest bars, build features, split by date, fit the model bundle, evaluate it
and save a new model version.

Examples:
  riskcast train
  riskcast train --tickers AAPL,MSFT --no-cache`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainTickers, "tickers", "", "comma separated tickers (default data.tickers)")
	trainCmd.Flags().BoolVar(&trainNoCache, "no-cache", false, "refetch bars instead of using the CSV cache")
}

func runTrain(cmd *cobra.Command, args []string) error {
	app, _, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := app.Train(ctx, usecase.TrainRequest{
		Tickers:  util.ParseTickers(trainTickers),
		UseCache: !trainNoCache,
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	renderResult(cmd.OutOrStdout(), res)
	return nil
}

func renderResult(w io.Writer, res *models.TrainingResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Model %s", res.Version)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Tickers", strings.Join(res.Tickers, ",")})
	t.AppendRow(table.Row{"Train rows", res.TrainRows})
	t.AppendRow(table.Row{"Test rows", res.TestRows})
	if m := res.Metrics; m != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"RMSE", fmt.Sprintf("%.6f", m.Regression.RMSE)})
		t.AppendRow(table.Row{"MAE", fmt.Sprintf("%.6f", m.Regression.MAE)})
		t.AppendRow(table.Row{"R2 (train)", fmt.Sprintf("%.4f", res.TrainR2)})
		t.AppendRow(table.Row{"R2 (test)", fmt.Sprintf("%.4f", m.Regression.R2)})
		t.AppendRow(table.Row{"Accuracy", fmt.Sprintf("%.4f", m.Classification.Accuracy)})
		t.AppendRow(table.Row{"F1 (weighted)", fmt.Sprintf("%.4f", m.Classification.F1)})
		t.AppendRow(table.Row{"Precision", fmt.Sprintf("%.4f", m.Classification.Precision)})
		t.AppendRow(table.Row{"Recall", fmt.Sprintf("%.4f", m.Classification.Recall)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Diagnosis", res.Diagnosis})
	t.AppendRow(table.Row{"Integrity", passFail(res.IntegrityOK)})
	if len(res.DriftedColumns) > 0 {
		t.AppendRow(table.Row{"Drifted", strings.Join(res.DriftedColumns, ",")})
	}
	if res.MetricsFile != "" {
		t.AppendRow(table.Row{"Metrics file", res.MetricsFile})
	}
	t.Render()
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed (see logs)"
}
