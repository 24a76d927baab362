package cmd

import (
	"os"

	"laughprop/cmd/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "laughprop",
	Short: "Laughprop party game server",
	Long:  "Laughprop orchestrates multiplayer mini-games over WebSocket, dispatching image generation to a pool of upstream servers.",
}

func init() {
	// Auto-load .env from current dir or parent dir
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	rootCmd.AddCommand(server.Cmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
