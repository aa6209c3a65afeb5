package main

import (
	"os"

	"github.com/ahlbert/mt5-tradingbot/cmd/mt5bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
