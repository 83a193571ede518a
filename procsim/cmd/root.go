// Package cmd provides the command-line interface for procsim.
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide defaults for the flags. They can also be
// set in a .env file in the working directory.
const (
	EnvLogLevel    = "PROCSIM_LOG_LEVEL"
	EnvMonitorPort = "PROCSIM_MONITOR_PORT"
)

// NewRootCmd creates the base command when called without any subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "procsim",
		Short: "procsim runs process-oriented discrete-event simulations.",
		Long: `procsim runs process-oriented discrete-event simulations. ` +
			`Currently, it supports the airport scenario, where aircraft ` +
			`share a runway and a set of gates.`,
		SilenceUsage:      true,
		PersistentPreRunE: setUpEnvironment,
	}

	rootCmd.PersistentFlags().String("log-level", "warning",
		"Log level: panic, fatal, error, warning, info, debug, or trace. "+
			"Defaults to $"+EnvLogLevel+".")
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load the environment variables from.")

	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

func setUpEnvironment(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	level, _ := cmd.Flags().GetString("log-level")
	if !cmd.Flags().Changed("log-level") && os.Getenv(EnvLogLevel) != "" {
		level = os.Getenv(EnvLogLevel)
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	logrus.SetLevel(logLevel)

	return nil
}

// Execute runs the root command and exits with a non-zero code on errors.
// The functions registered with atexit run before the program exits.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
