package main

import (
	"os"

	"github.com/CutzuDev/itec2025/pkg/log"
)

func main() {
	if err := Execute(); err != nil {
		l := log.L()
		l.Error().Err(err).Msg("chat-sync-service exited")
		os.Exit(1)
	}
}
