package main

import (
	"time"

	"github.com/spf13/cobra"
)

type probeFlags struct {
	rcaURL   string
	uebaURL  string
	timeout  time.Duration
	logLevel string
}

var flags probeFlags

var rootCmd = &cobra.Command{
	Use:           "risk-probe",
	Short:         "risk-probe runs one poll cycle against the RCA and UEBA analytics APIs.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.rcaURL, "rca-url", "", "RCA API base URL (defaults to RCA_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.uebaURL, "ueba-url", "", "UEBA API base URL (defaults to UEBA_API_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "overall probe timeout")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level for fetch diagnostics")

	rootCmd.AddCommand(rcaCmd, uebaCmd)
}
