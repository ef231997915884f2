package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/config"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		dir      string
		env      []string
		datiFile string
		datoFile string
	)

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run one command with the six-stream topology and mirror its exit code",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("command to execute is required; use -- to separate flags from the command")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			plan := spawn.Plan{
				Command: lib.Command{Command: args[0], Args: args[1:]},
				Dir:     dir,
				Env:     env,
				Inputs: map[stream.Kind]spawn.Input{
					stream.Stdin: {Reader: os.Stdin},
				},
				Outputs: map[stream.Kind]sink.Sink{},
			}

			termOut := newRunTerminal(cfg, os.Stdout)
			termErr := newRunTerminal(cfg, os.Stderr)
			plan.Outputs[stream.Stdout] = termOut.Stream("")
			plan.Outputs[stream.Stderr] = termErr.Stream("")
			plan.Outputs[stream.Stddbg] = termErr.Stream(cfg.Streams.DebugLabel)

			if datiFile != "" {
				f, err := os.Open(datiFile)
				if err != nil {
					return err
				}
				defer f.Close()
				plan.Inputs[stream.Stddati] = spawn.Input{Reader: f}
			}
			if datoFile != "" {
				out, err := sink.NewFile(datoFile)
				if err != nil {
					return err
				}
				plan.Outputs[stream.Stddato] = out
			}

			h, err := spawn.Spawn(plan)
			if err != nil {
				if h == nil {
					return err
				}
				// The child never started; mirror the reserved code like an
				// interactive shell would.
				fmt.Fprintln(os.Stderr, err)
				return &exitCodeError{code: spawn.LaunchFailureExitCode}
			}

			st, err := h.Wait(cmd.Context())
			if err != nil {
				return err
			}
			for k, serr := range h.StreamErrors() {
				logger.Printf("%s: %v", k, serr)
			}
			if st.ExitCode != nil && *st.ExitCode != 0 {
				return &exitCodeError{code: *st.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the child")
	cmd.Flags().StringArrayVar(&env, "env", nil, "extra KEY=VALUE for the child (repeatable)")
	cmd.Flags().StringVar(&datiFile, "dati-file", "", "file fed to the child's stddati stream")
	cmd.Flags().StringVar(&datoFile, "dato-file", "", "file receiving the child's stddato stream")

	return cmd
}

// newRunTerminal wraps a device honoring the configured color mode; auto
// keeps the terminal's own detection.
func newRunTerminal(cfg config.Config, f *os.File) *sink.Terminal {
	t := sink.NewTerminal(f)
	switch cfg.Streams.Color {
	case "always":
		t.EnableColor(true)
	case "never":
		t.EnableColor(false)
	}
	return t
}
