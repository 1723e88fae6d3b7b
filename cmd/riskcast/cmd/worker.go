package cmd

import "github.com/spf13/cobra"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued training jobs",
	Long:  `Consume train_models jobs from the Redis queue without serving HTTP. Requires redis.enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := buildApp()
		if err != nil {
			return err
		}
		return app.RunWorker()
	},
}
