package main

import (
	"os"

	"github.com/joho/godotenv"

	apicmder "github.com/papercomputeco/corpus/cmd/corpus/serve/api"
)

func main() {
	_ = godotenv.Load()

	cmd := apicmder.NewAPICmd()
	cmd.Use = "corpusapi"
	cmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .corpus/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
