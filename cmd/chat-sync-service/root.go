package main

import (
	"github.com/spf13/cobra"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:           "chat-sync-service",
	Short:         "Room chat: live message views over WebSocket, history, attachments",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, WebSocket and gRPC health servers",
	RunE:  runServe,
}

var devUser string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&devUser, "dev-user", "dev-user", "user id of the token logged when auth.dev_signing is set")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setup loads configuration and initialises the global logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-sync-service",
	})
	return cfg, nil
}
