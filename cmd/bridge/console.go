package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/otto/client"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive REPL for operating a running gateway",
	RunE:  runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("device",
			readline.PcItem("action"),
			readline.PcItem("state"),
		),
		readline.PcItem("scenario",
			readline.PcItem("switch"),
			readline.PcItem("state"),
		),
		readline.PcItem("system"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "bridge\033[31m»\033[0m ",
		HistoryFile:       "/tmp/bridge_readline.tmp",
		AutoComplete:      completer,
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	rl.CaptureExitSignal()

	c := client.NewClient(serverURL)
	out := cmd.OutOrStdout()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := consoleDispatch(out, c, line); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
		}
	}

	fmt.Fprintln(out, "bye")
	return nil
}

// consoleDispatch parses and runs one console line. Recognised verbs:
//
//	device <id> action <name> [json-params]
//	device <id> state
//	scenario switch <id>
//	scenario state
//	system
func consoleDispatch(out io.Writer, c *client.Client, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "system":
		sys, err := c.GetSystem()
		if err != nil {
			return err
		}
		return printConsoleJSON(out, sys)

	case "device":
		if len(fields) < 3 {
			return fmt.Errorf("usage: device <id> action <name> [json-params] | device <id> state")
		}
		deviceID, verb := fields[1], fields[2]
		switch verb {
		case "state":
			state, err := c.DeviceState(deviceID)
			if err != nil {
				return err
			}
			return printConsoleJSON(out, state)
		case "action":
			if len(fields) < 4 {
				return fmt.Errorf("usage: device <id> action <name> [json-params]")
			}
			action := fields[3]
			var params map[string]any
			if len(fields) > 4 {
				raw := strings.Join(fields[4:], " ")
				if err := json.Unmarshal([]byte(raw), &params); err != nil {
					return fmt.Errorf("parse params: %w", err)
				}
			}
			resp, err := c.DeviceAction(deviceID, action, params)
			if err != nil {
				return err
			}
			return printConsoleJSON(out, resp)
		default:
			return fmt.Errorf("unknown device verb %q", verb)
		}

	case "scenario":
		if len(fields) < 2 {
			return fmt.Errorf("usage: scenario switch <id> | scenario state")
		}
		switch fields[1] {
		case "switch":
			if len(fields) < 3 {
				return fmt.Errorf("usage: scenario switch <id>")
			}
			result, err := c.ScenarioSwitch(fields[2], true)
			if err != nil {
				return err
			}
			return printConsoleJSON(out, result)
		case "state":
			state, err := c.ScenarioState()
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Fprintln(out, "no active scenario")
				return nil
			}
			return printConsoleJSON(out, state)
		default:
			return fmt.Errorf("unknown scenario verb %q", fields[1])
		}

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func printConsoleJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
