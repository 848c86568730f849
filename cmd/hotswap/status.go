// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/hotswap/cmd/hotswap/cli"
	"github.com/bureau-foundation/hotswap/lib/codec"
	"github.com/bureau-foundation/hotswap/lib/reload"
)

func statusCommand() *cli.Command {
	var (
		options configOptions
		verbose bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show the loaded module of a running application",
		Description: `Read the status file a running "hotswap run" keeps in its state
directory and show the loaded generation, module digest, pipelines and
preserved state types.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "also dump the raw status record in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			path := cfg.StatusPath()
			if path == "" {
				return errors.New("state_directory is empty, so no status is recorded")
			}
			status, raw, err := reload.ReadStatus(path)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no status at %s (is \"hotswap run\" running here?)", path)
			}
			if err != nil {
				return err
			}

			fmt.Print(renderStatus(status, processAlive(status.PID), time.Now()))
			if verbose {
				diagnostic, err := codec.Diagnose(raw)
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n", diagnostic)
			}
			return nil
		},
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// renderStatus formats status for the terminal. alive reports whether
// the process that wrote it still exists.
func renderStatus(status reload.Status, alive bool, now time.Time) string {
	var builder strings.Builder
	line := func(label, value string) {
		builder.WriteString(labelStyle.Render(label) + value + "\n")
	}

	state := goodStyle.Render("running")
	if !alive {
		state = badStyle.Render("not running")
	}
	builder.WriteString(titleStyle.Render(status.Module) + " " + state + "\n")

	line("pid", fmt.Sprintf("%d", status.PID))
	line("symbol", status.Symbol)
	generation := fmt.Sprintf("%d", status.Generation.Number)
	if !status.Generation.Timestamp.IsZero() {
		generation += fmt.Sprintf(" (%s ago)", age(now, status.Generation.Timestamp))
	}
	line("generation", generation)
	switch {
	case status.Fallback:
		line("module", warnStyle.Render("fallback (no build loaded)"))
	case status.Digest.IsZero():
		line("module", warnStyle.Render("none loaded"))
		line("artifact", status.Artifact)
	default:
		line("module", status.Digest.Short())
		line("artifact", status.Artifact)
		line("loaded from", status.PrivatePath)
	}
	line("pipelines", list(status.Pipelines))
	line("state types", list(status.StateTypes))
	if status.Failures > 0 {
		line("failures", warnStyle.Render(fmt.Sprintf("%d", status.Failures)))
	}
	if status.LastError != "" {
		line("last error", badStyle.Render(status.LastError))
	}
	line("updated", fmt.Sprintf("%s ago", age(now, status.UpdatedAt)))
	return builder.String()
}

func list(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func age(now, then time.Time) time.Duration {
	return now.Sub(then).Round(time.Second)
}

// processAlive reports whether pid exists. EPERM means it exists but
// belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
