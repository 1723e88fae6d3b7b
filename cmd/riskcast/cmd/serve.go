package cmd

import "github.com/spf13/cobra"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the prediction API. With kafka.enabled the bundle reloads on
model.trained events. With redis.enabled POST /api/train enqueues jobs that
this process also works on. Ctrl+C stops it gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := buildApp()
		if err != nil {
			return err
		}
		return app.Run()
	},
}
