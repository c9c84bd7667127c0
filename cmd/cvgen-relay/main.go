// Command cvgen-relay runs the GitHub OAuth relay and session cache for CVGen.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	addrFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "cvgen-relay",
	Short: "GitHub OAuth relay and session cache for CVGen",
	Long: `cvgen-relay exchanges GitHub authorization codes server-side, keeps the
access token in a server-side session and serves the cached profile and a
star-sorted repository listing to the CVGen frontend.

Configuration is read from CVGEN_* environment variables.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "address to listen on (overrides CVGEN_PORT)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR); defaults to DEBUG in development, INFO in production")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
