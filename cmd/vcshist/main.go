package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
