// Command bridge runs the device-integration gateway: serve wires the
// full runtime against a broker, scenario and console are thin clients
// for operating an already-running gateway over its REST surface.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "bridge",
	Short:         "Device-integration gateway bridging MQTT and AV/IR/RF devices",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8011", "gateway REST base URL, for scenario/console")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(consoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
