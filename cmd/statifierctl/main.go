// Command statifierctl is a small CLI wrapper around the statefier
// engine: load an SCXML document, run it to its initial configuration,
// optionally feed it a sequence of events, and print the resulting active
// configuration. It is a convenience shim for manual exploration and
// scripting, not part of the core engine -- nothing under engine/,
// builder/, or actions/ imports this package.
//
// Grounded on the teacher's cmd/demo/main.go (load a machine, drive it
// with events, print current state) and cmd/scxml_dowloader/main.go
// (flag-driven single-purpose CLI in its own cmd/ subdirectory);
// generalized from hand-rolled flag parsing to cobra, matching the pack's
// convention for CLI entry points (AKJUS-bsc-erigon, steveyegge-beads,
// aledsdavies-opal all build their command surface on cobra).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riddler/statifier/builder"
	"github.com/riddler/statifier/engine"
	"github.com/riddler/statifier/logging"
	"github.com/riddler/statifier/runtime"
)

var events []string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statifierctl <scxml-file>",
		Short: "Run an SCXML document to completion and print its configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  runRoot,
	}
	cmd.Flags().StringSliceVarP(&events, "event", "e", nil, "event to send, in order; repeatable (name or name=json-data)")
	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("statifierctl: %w", err)
	}
	defer f.Close()

	doc, err := builder.New().Build(f)
	if err != nil {
		return fmt.Errorf("statifierctl: building document: %w", err)
	}

	logger, err := logging.NewProductionAdapter(logging.Warn)
	if err != nil {
		return fmt.Errorf("statifierctl: building logger: %w", err)
	}
	sc := engine.New(doc, engine.WithLogger(logger))

	if err := runtime.Initialize(sc); err != nil {
		return fmt.Errorf("statifierctl: initializing: %w", err)
	}

	for _, spec := range events {
		name, data := parseEventSpec(spec)
		if err := runtime.SendSync(sc, name, data); err != nil {
			return fmt.Errorf("statifierctl: sending %q: %w", name, err)
		}
	}

	return printConfiguration(cmd, sc)
}

// parseEventSpec splits "name=jsonData" into the event name and its
// decoded payload; a spec with no "=" is a bare event name with nil data.
func parseEventSpec(spec string) (string, any) {
	name, raw, ok := strings.Cut(spec, "=")
	if !ok {
		return name, nil
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		data = raw
	}
	return name, data
}

func printConfiguration(cmd *cobra.Command, sc *engine.StateChart) error {
	for _, id := range sc.Configuration().ActiveLeaves() {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	if problems := sc.Configuration().Validate(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", p)
		}
	}
	return nil
}
