package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hexsh/hexsh/pkg/lib/config"
	"github.com/hexsh/hexsh/pkg/lib/jobs"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
)

var logger = log.New(io.Discard, "shell: ", log.LstdFlags)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "hexsh",
		Short: "Interactive shell with a six-stream child topology",
		Long: `hexsh spawns every child with six fixed streams: the classic stdin,
stdout and stderr plus stddbg (text diagnostics), stddati and stddato
(binary data in and out). Without arguments it starts the interactive
prompt; "run" executes a single command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			sh := NewShell(cfg, os.Stdin, os.Stdout, os.Stderr)
			sh.WatchConfig(opts.configPath)
			return sh.Run()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: config.toml in the user config dir)")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "debug logging to stderr")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newProbeCmd())

	return root
}

// loadConfig resolves the flag and default locations into a Config and
// routes the library debug logs according to it.
func loadConfig(opts *rootOptions) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	switch {
	case opts.verbose:
		setLogOutput(os.Stderr)
	case cfg.Log.Enabled:
		w := io.Writer(os.Stderr)
		if cfg.Log.File != "" {
			f, err := sink.NewFile(cfg.Log.File)
			if err != nil {
				return cfg, err
			}
			w = f
		}
		setLogOutput(w)
	}
	return cfg, nil
}

func setLogOutput(w io.Writer) {
	logger.SetOutput(w)
	spawn.SetLogOutput(w)
	jobs.SetLogOutput(w)
	sink.SetLogOutput(w)
	config.SetLogOutput(w)
}
