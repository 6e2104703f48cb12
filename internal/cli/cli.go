// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/quantgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("quantgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
QuantGridGo - A declarative quantization-pass configuration engine.

Usage:
  quantgridgo [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	listFlag := flagSet.Bool("list", false, "List the registered pass kinds.")
	describeFlag := flagSet.String("describe", "", "Print the parameter table of the given pass kind.")
	resolveFlag := flagSet.String("resolve", "", "Resolve a search point against the given pass kind.")
	pointFlag := flagSet.String("point", "", "Path to a JSON file holding the search point for -resolve.")
	manifestsFlag := flagSet.String("manifests", "", "Comma-separated paths to extra pass manifest files or directories.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	cfg := app.Config{
		PointPath: *pointFlag,
		LogFormat: strings.ToLower(*logFormatFlag),
		LogLevel:  strings.ToLower(*logLevelFlag),
	}
	if *manifestsFlag != "" {
		cfg.ManifestPaths = strings.Split(*manifestsFlag, ",")
	}

	switch {
	case *listFlag:
		cfg.Action = app.ActionList
	case *describeFlag != "":
		cfg.Action = app.ActionDescribe
		cfg.PassKind = *describeFlag
	case *resolveFlag != "":
		cfg.Action = app.ActionResolve
		cfg.PassKind = *resolveFlag
	default:
		flagSet.Usage()
		return nil, true, nil
	}

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return validated, false, nil
}
