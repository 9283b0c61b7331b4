// Package cli — check.go implements the "wsgidock check" command.
//
// The check command validates a project's runtime contract without
// touching the Docker daemon: the requirements.txt must parse, the
// resolved entry module must exist, and both the generated and any
// existing Dockerfile must pass the layer-order lint.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/project"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Validate a WSGI project without building",
		Long: `Validate a project's container contract without touching Docker.

Checks that requirements.txt parses, the resolved entry module exists,
and the Dockerfile (generated and existing) keeps dependency installation
before source copy for layer caching.

Exits with a non-zero status when any problem is found.

Examples:
  wsgidock check
  wsgidock check ./billing-api --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runCheck(dir)
		},
	}

	return cmd
}

// runCheck is the main logic function for the check command.
func runCheck(dir string) error {
	// Step 1: Inspect the project. Inspection failures (missing
	// requirements.txt, malformed config) are themselves check failures.
	p, err := project.Inspect(dir)
	if err != nil {
		return err
	}

	// Step 2: Run the offline contract checks.
	problems := project.Check(p)
	result := project.Result(p, problems)

	// Step 3: Output the result.
	printCheckResult(result)

	if !result.Valid {
		return model.NewCLIError(model.ExitProjectInvalid,
			fmt.Sprintf("project %q failed %d check(s)", p.Name, len(problems)))
	}
	return nil
}

// printCheckResult outputs the check result in text or JSON format.
func printCheckResult(result project.CheckResult) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Project %q (%s)\n", result.Name, result.Dir)
	fmt.Printf("  Variant:    %s\n", result.Variant)
	fmt.Printf("  Entrypoint: %s\n", result.Entrypoint)
	if result.Valid {
		fmt.Println("  Status:     OK")
		return
	}
	fmt.Println("  Status:     INVALID")
	for _, problem := range result.Problems {
		fmt.Printf("    - %s\n", problem)
	}
}
