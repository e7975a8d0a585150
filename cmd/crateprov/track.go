package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"crateprov/internal/capture"
	"crateprov/internal/crate"
	"crateprov/internal/logging"
	"crateprov/internal/provenance"
	"crateprov/internal/storage"

	"github.com/spf13/cobra"
)

var (
	trackCode     string
	trackName     string
	trackLanguage string
	trackInputs   []string
	trackOutputs  []string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Record provenance for code that ran elsewhere, from declared inputs and outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		code, err := os.ReadFile(trackCode)
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}
		inputs, err := absPaths(trackInputs)
		if err != nil {
			return err
		}
		outputs, err := absPaths(trackOutputs)
		if err != nil {
			return err
		}

		store, closeStore, err := initStore(cfg, crate.InitOptions{})
		if err != nil {
			return err
		}
		defer closeStore()
		tracker, err := initTracker(ctx, cfg, store)
		if err != nil {
			return err
		}

		sess, err := capture.Begin(captureConfig(cfg))
		if err != nil {
			return err
		}
		defer sess.Close()
		for _, out := range outputs {
			sess.RecordWrite(out)
		}

		name := trackName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(trackCode), filepath.Ext(trackCode))
		}
		result, err := tracker.Track(ctx, sess, provenance.Request{
			Code:         string(code),
			Name:         name,
			Language:     trackLanguage,
			CodePath:     trackCode,
			ManualInputs: inputs,
		})
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

var (
	execName   string
	execInputs []string
)

var execCmd = &cobra.Command{
	Use:   "exec [--input PATH]... -- COMMAND [ARGS]...",
	Short: "Run a command and record the files it created or modified under the crate",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		inputs, err := absPaths(execInputs)
		if err != nil {
			return err
		}

		store, closeStore, err := initStore(cfg, crate.InitOptions{})
		if err != nil {
			return err
		}
		defer closeStore()
		tracker, err := initTracker(ctx, cfg, store)
		if err != nil {
			return err
		}

		snapshotter := capture.NewSnapshotter(captureConfig(cfg),
			crate.MetadataFile, storage.DefaultDBName, storage.DefaultDBName+"-journal", storage.DefaultDBName+"-wal", storage.DefaultDBName+"-shm")
		before, err := snapshotter.Take(store.Root())
		if err != nil {
			return err
		}
		if err := runCommand(ctx, args); err != nil {
			return err
		}
		after, err := snapshotter.Take(store.Root())
		if err != nil {
			return err
		}
		changed := before.Changed(after)
		logging.FromContext(ctx).Debug("command finished", "changed", len(changed))

		name := execName
		if name == "" {
			name = filepath.Base(args[0])
		}
		result, err := tracker.Track(ctx, provenance.Paths{WritePaths: changed}, provenance.Request{
			Code:         shellLine(args),
			Name:         name,
			Language:     "shell",
			ManualInputs: inputs,
		})
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackCode, "code", "", "Source file of the executed code")
	trackCmd.Flags().StringVar(&trackName, "name", "", "Software name (defaults to the code file name)")
	trackCmd.Flags().StringVar(&trackLanguage, "language", "", "Programming language (detected when empty)")
	trackCmd.Flags().StringArrayVar(&trackInputs, "input", nil, "Input file read by the code (repeatable)")
	trackCmd.Flags().StringArrayVar(&trackOutputs, "output", nil, "Output file written by the code (repeatable)")
	_ = trackCmd.MarkFlagRequired("code")

	execCmd.Flags().StringVar(&execName, "name", "", "Software name (defaults to the command name)")
	execCmd.Flags().StringArrayVar(&execInputs, "input", nil, "Input file read by the command (repeatable)")
}

func runCommand(ctx context.Context, args []string) error {
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("command exited with status %d, nothing recorded", exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run command: %w", err)
	}
	return nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.Contains(p, "://") {
			out = append(out, p)
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func shellLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
