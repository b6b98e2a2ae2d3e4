// Package cli implements the cobra-based command line interface for unrun.
//
// The root command is the whole interface: it takes an entry file followed
// by the program's own arguments, bundles the file and runs it. Flags are
// only recognised before the entry file; everything after it belongs to the
// program.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/unrun/internal/model"
	"github.com/shinji-kodama/unrun/pkg/unrun"
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// errNoInput is reported when no entry file was given.
const errNoInput = model.ErrorPrefix + " No input files provided"

// rootFlags holds the flag values for the root command.
type rootFlags struct {
	// debug keeps generated artifacts and enables debug logging.
	debug bool

	// preset selects the compatibility preset for --json output.
	preset string

	// wrapper selects the CommonJS wrapper repair strategy.
	wrapper string

	// envFiles are dotenv files loaded into the program's environment.
	envFiles []string

	// node overrides the host runtime binary.
	node string

	// jsonOutput evaluates the entry and prints its exports as JSON
	// instead of running it as a program.
	jsonOutput bool
}

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "unrun [flags] <file> [args...]",
		Short: "Run TypeScript and modern JavaScript files just in time",
		Long: `unrun bundles a TypeScript or JavaScript entry file into a single ES module
and runs it with Node.js. Local imports, JSON, YAML and TOML files are bundled;
installed packages and Node.js builtins stay native imports.

Flags must come before the file. Everything after the file is passed to the
program unchanged, and the program's exit code becomes unrun's exit code.

Examples:
  unrun scripts/build.ts --out dist
  unrun --env-file .env server.ts
  unrun --json --preset jiti config.ts`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, args, flags)
		},
	}

	// Stop flag parsing at the entry file so the program's own flags are
	// passed through untouched.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "Keep generated files and print debug logs")
	rootCmd.Flags().StringVar(&flags.preset, "preset", "", "Compatibility preset: none, jiti, bundle-require")
	rootCmd.Flags().StringVar(&flags.wrapper, "wrapper", "", "CommonJS wrapper repair: promote, unwrap")
	rootCmd.Flags().StringArrayVar(&flags.envFiles, "env-file", nil, "Load environment variables from a dotenv file (repeatable)")
	rootCmd.Flags().StringVar(&flags.node, "node", "", "Node.js binary to run (default: node on PATH)")
	rootCmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the module's exports as JSON instead of running it")

	return rootCmd
}

// runRoot bundles and runs (or evaluates) the entry file.
func runRoot(cmd *cobra.Command, args []string, flags *rootFlags) error {
	if len(args) == 0 {
		return model.NewCLIError(model.ExitGeneralError, errNoInput)
	}

	opts := unrun.Options{
		Path:            args[0],
		Debug:           flags.debug,
		Preset:          flags.preset,
		WrapperStrategy: flags.wrapper,
		EnvFiles:        flags.envFiles,
		NodePath:        flags.node,
		Stdin:           cmd.InOrStdin(),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	}

	if flags.jsonOutput {
		res, err := unrun.Load(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printResultJSON(cmd.OutOrStdout(), res)
	}

	res, err := unrun.Exec(cmd.Context(), opts, args[1:])
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &model.CLIError{Code: model.ExitCode(res.ExitCode)}
	}
	return nil
}

// printResultJSON writes the evaluated module and its dependencies.
func printResultJSON(w io.Writer, res *unrun.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("%s failed to encode module: %w", model.ErrorPrefix, err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by the command and translates them into
// appropriate OS exit codes. CLIError types carry their own exit codes;
// other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	os.Exit(run(rootCmd, os.Stderr))
}

// run executes rootCmd, reports any error to stderr and returns the exit
// code.
func run(rootCmd *cobra.Command, stderr io.Writer) int {
	err := rootCmd.Execute()
	if err == nil {
		return int(model.ExitSuccess)
	}
	jsonOutput, _ := rootCmd.Flags().GetBool("json")

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		// A program's own exit status carries no message.
		if cliErr.Message != "" || cliErr.Err != nil {
			printError(stderr, jsonOutput, cliErr.Message, cliErr.Err)
		}
		return int(cliErr.Code)
	}

	printError(stderr, jsonOutput, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json flag.
func printError(w io.Writer, jsonOutput bool, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]any{
			"error": map[string]any{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]any); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "%s: %v\n", message, underlying)
	} else {
		fmt.Fprintln(w, message)
	}
}
