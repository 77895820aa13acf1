package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/engine"
	"github.com/mailster/scenario/internal/logging"
	"github.com/mailster/scenario/internal/scenario"
)

// scenario-lint parses scenario files and reports rule counts and parse
// errors, so broken rules are caught before a daemon picks them up.
func main() {
	quiet := flag.Bool("q", false, "only report errors")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: scenario-lint [-q] [-verbose] <scenario file>...")
		os.Exit(2)
	}

	logger, err := logging.InitConsoleLogger(*verbose, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	failed := false
	for _, path := range flag.Args() {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Cannot read scenario file", zap.String("path", path), zap.Error(err))
			failed = true
			continue
		}

		// File naming convention is <function>.<name>.
		base := filepath.Base(path)
		function, name, found := strings.Cut(base, ".")
		if !found {
			name = base
		}

		def, err := scenario.Parse(function, name, string(raw))
		if err != nil {
			logger.Error("Scenario failed to parse", zap.String("path", path), zap.Error(err))
			failed = true
			continue
		}

		logger.Debug("Parsed scenario",
			zap.String("path", path),
			zap.String("function", function),
			zap.String("name", name),
			zap.Int("rules", len(def.Rules)))

		if !*quiet {
			fmt.Printf("%s: %d rules", path, len(def.Rules))
			if title := engine.GetCurrentTitle(def, nil); title != "" {
				fmt.Printf(", title %q", title)
			}
			if engine.IsPurelyClosed(def) {
				fmt.Printf(" (purely closed)")
			}
			fmt.Println()
		}
	}

	if failed {
		os.Exit(1)
	}
}
