package main

import (
	"os"

	"github.com/joho/godotenv"

	"docrouter/internal/cli"
)

func main() {
	// Optional; the environment wins over .env values.
	godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
