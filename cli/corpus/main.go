package main

import (
	"os"

	"github.com/joho/godotenv"

	corpuscmder "github.com/papercomputeco/corpus/cmd/corpus"
)

func main() {
	_ = godotenv.Load()

	cmd := corpuscmder.NewCorpusCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
