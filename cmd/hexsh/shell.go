package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"golang.org/x/term"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/config"
	"github.com/hexsh/hexsh/pkg/lib/jobs"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// Shell is the interactive prompt loop. It owns the job table, the two
// terminal writers and the captured variables; everything below it (spawn,
// drains, reaping) runs on its own goroutines while the loop itself stays
// single threaded.
type Shell struct {
	in   *bufio.Scanner
	out  io.Writer
	errw io.Writer

	termOut *sink.Terminal
	termErr *sink.Terminal
	outTTY  bool
	errTTY  bool

	jobs *jobs.Table

	mu      sync.Mutex // guards cfg and vars against the reload callback
	cfg     config.Config
	vars    map[string]string
	watcher *config.Watcher

	quit     bool
	exitCode int
}

func NewShell(cfg config.Config, in io.Reader, out, errw io.Writer) *Shell {
	s := &Shell{
		in:      bufio.NewScanner(in),
		out:     out,
		errw:    errw,
		termOut: sink.NewTerminal(out),
		termErr: sink.NewTerminal(errw),
		jobs:    jobs.NewTable(),
		cfg:     cfg,
		vars:    make(map[string]string),
	}
	s.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if f, ok := out.(*os.File); ok {
		s.outTTY = term.IsTerminal(int(f.Fd()))
	}
	if f, ok := errw.(*os.File); ok {
		s.errTTY = term.IsTerminal(int(f.Fd()))
	}
	s.applyColor(cfg)
	return s
}

// WatchConfig starts live reload of the config file. Failure to watch is not
// fatal; the shell just keeps the settings it started with.
func (s *Shell) WatchConfig(path string) {
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return
	}
	w, err := config.Watch(path, s.applyConfig)
	if err != nil {
		return
	}
	s.watcher = w
}

func (s *Shell) applyConfig(cfg config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.applyColor(cfg)
}

func (s *Shell) applyColor(cfg config.Config) {
	s.termOut.EnableColor(colorOn(cfg.Streams.Color, s.outTTY))
	s.termErr.EnableColor(colorOn(cfg.Streams.Color, s.errTTY))
}

func colorOn(mode string, tty bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return tty
}

// config returns the current configuration snapshot; the watcher may swap it
// between prompts.
func (s *Shell) config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run reads and dispatches lines until exit or end of input, then shuts the
// job table down within the configured grace.
func (s *Shell) Run() error {
	defer s.shutdown()

	for !s.quit {
		s.announceFinished()
		fmt.Fprint(s.out, s.config().Shell.Prompt)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			break
		}
		s.dispatch(s.in.Text())
	}

	if err := s.in.Err(); err != nil {
		return err
	}
	if s.exitCode != 0 {
		return &exitCodeError{code: s.exitCode}
	}
	return nil
}

func (s *Shell) shutdown() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.jobs.Shutdown(s.config().Spawn.ShutdownGrace.Std())
	s.announceFinished()
}

// announceFinished reports jobs that reached their end since the last
// prompt, each exactly once.
func (s *Shell) announceFinished() {
	for _, e := range s.jobs.TakeFinished() {
		st := e.Handle.Status()
		code := "?"
		if st.ExitCode != nil {
			code = strconv.Itoa(*st.ExitCode)
		}
		fmt.Fprintf(s.out, "[%d] exit %s  %s\n", e.ID, code, e.Handle.Command())
	}
}

func (s *Shell) dispatch(line string) {
	tokens, background, err := splitLine(line)
	if err != nil {
		fmt.Fprintf(s.errw, "hexsh: %v\n", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if fn := builtins[tokens[0]]; fn != nil {
		if background {
			fmt.Fprintf(s.errw, "hexsh: %s is a builtin and cannot run in the background\n", tokens[0])
			return
		}
		fn(s, tokens[1:])
		return
	}

	s.spawnJob(tokens, background)
}

// spawnJob launches a command line. Foreground jobs stream their text output
// to the terminal and block the prompt until reaped. Background jobs capture
// all four outputs into buffers for later replay and hold both input streams
// open for the feed and eof builtins.
func (s *Shell) spawnJob(tokens []string, background bool) {
	cfg := s.config()
	plan := spawn.Plan{
		Command: lib.Command{Command: tokens[0], Args: tokens[1:]},
	}

	var buffers map[stream.Kind]*sink.Buffer
	if background {
		buffers = make(map[stream.Kind]*sink.Buffer)
		plan.Outputs = make(map[stream.Kind]sink.Sink)
		for _, k := range stream.ByDirection(stream.ChildToParent) {
			b := sink.RunNewBuffer()
			buffers[k] = b
			plan.Outputs[k] = b
		}
		plan.Inputs = map[stream.Kind]spawn.Input{
			stream.Stdin:   {Hold: true},
			stream.Stddati: {Hold: true},
		}
	} else {
		// Binary output has no place on a terminal; run and capture are the
		// ways to route stddato somewhere useful.
		plan.Outputs = map[stream.Kind]sink.Sink{
			stream.Stdout: s.termOut.Stream(""),
			stream.Stderr: s.termErr.Stream(""),
			stream.Stddbg: s.termErr.Stream(cfg.Streams.DebugLabel),
		}
	}

	h, err := spawn.Spawn(plan)
	if err != nil {
		fmt.Fprintf(s.errw, "hexsh: %v\n", err)
		if h == nil {
			return
		}
		// Launch failures still register; the job shows up once as finished
		// with the reserved code.
	}

	mode := jobs.Foreground
	if background {
		mode = jobs.Background
	}
	e := s.jobs.Register(h, mode, buffers)

	if background {
		fmt.Fprintf(s.out, "[%d] %d\n", e.ID, h.PID())
		return
	}
	s.waitForeground(e)
}

// waitForeground blocks the prompt until the job is reaped, then retires it
// from the table. Errors absorbed by the stream workers stay off the user's
// terminal; they go to the debug log only.
func (s *Shell) waitForeground(e *jobs.Entry) lib.Status {
	st, _ := s.jobs.Wait(context.Background(), e.ID)
	s.jobs.Remove(e.ID)

	for k, serr := range e.Handle.StreamErrors() {
		logger.Printf("[%d] %s: %v", e.ID, k, serr)
	}
	return st
}
