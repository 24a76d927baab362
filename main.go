package main

import (
	"laughprop/cmd"
	"laughprop/log"

	"github.com/joho/godotenv"
)

// Set via -ldflags at build time
var (
	GitCommit = "dev"
	Version   = "dev"
	BuildTime = "unknown"
)

func init() {
	// Load .env from root directory
	// Silently ignore if not found (in prod .env should not be used)
	_ = godotenv.Load("../.env")
}

func main() {
	log.Info("laughprop starting", "version", Version, "commit", GitCommit, "built", BuildTime)
	cmd.Execute()
}
