package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/otto/client"
)

var serverURL string

var scenarioGraceful bool

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect and switch scenarios on a running gateway",
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every loaded scenario definition",
	RunE:  runScenarioList,
}

var scenarioSwitchCmd = &cobra.Command{
	Use:   "switch <scenario-id>",
	Short: "Switch the active scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenarioSwitch,
}

var scenarioStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the active scenario's computed state",
	RunE:  runScenarioState,
}

func init() {
	scenarioSwitchCmd.Flags().BoolVar(&scenarioGraceful, "graceful", true, "skip power_off on devices shared with the outgoing scenario")
	scenarioCmd.AddCommand(scenarioListCmd)
	scenarioCmd.AddCommand(scenarioSwitchCmd)
	scenarioCmd.AddCommand(scenarioStateCmd)
}

func runScenarioList(cmd *cobra.Command, args []string) error {
	defs, err := client.NewClient(serverURL).ScenarioDefinitions()
	if err != nil {
		return err
	}
	return printJSON(cmd, defs)
}

func runScenarioSwitch(cmd *cobra.Command, args []string) error {
	result, err := client.NewClient(serverURL).ScenarioSwitch(args[0], scenarioGraceful)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runScenarioState(cmd *cobra.Command, args []string) error {
	state, err := client.NewClient(serverURL).ScenarioState()
	if err != nil {
		return err
	}
	if state == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no active scenario")
		return nil
	}
	return printJSON(cmd, state)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
