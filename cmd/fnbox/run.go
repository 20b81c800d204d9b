package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fnbox/safety"
	"fnbox/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Validate and execute a function once, without the registry",
	Long: `Run a function definition through the same safety gate and sandbox
the server uses.

Code can be provided via:
  - File argument: fnbox run fn.star
  - Inline flag: fnbox run -c 'def process(parameters): ...'
  - Stdin: cat fn.star | fnbox run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	runCmd.Flags().String("params", "{}", "Parameters as a JSON object")
	runCmd.Flags().Duration("timeout", sandbox.DefaultTimeout, "Execution timeout")
	runCmd.Flags().Int64("memory", sandbox.DefaultMemoryLimit, "Memory ceiling in bytes (0 disables)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")

	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		source = string(data)
	default:
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return cmd.Help()
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		source = string(data)
	}
	if strings.TrimSpace(source) == "" {
		return cmd.Help()
	}

	if err := safety.Validate(source); err != nil {
		return err
	}

	rawParams, _ := cmd.Flags().GetString("params")
	var params map[string]any
	dec := json.NewDecoder(strings.NewReader(rawParams))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return fmt.Errorf("invalid --params: %w", err)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	memory, _ := cmd.Flags().GetInt64("memory")
	runner := sandbox.NewRunner(
		sandbox.WithTimeout(timeout),
		sandbox.WithMemoryLimit(memory),
	)

	res := runner.Run(context.Background(), source, params)
	if res.Status != sandbox.StatusSuccess {
		fmt.Fprintf(os.Stderr, "Error: %s: %s (after %s)\n", res.ErrorKind, res.ErrorMsg, res.Duration.Round(time.Millisecond))
		os.Exit(1)
	}

	out, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
