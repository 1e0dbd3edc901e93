package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grovepi-bridge/config"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge between a Scratch runtime and a GrovePi kit",
	Long: `bridge listens for Scratch broadcasts, drives the GrovePi board, LCD,
IR receiver and camera accordingly and reports sensor values back.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file (defaults apply when empty)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
