package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/jobs"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

// builtinFunc runs one builtin. args excludes the builtin's own name.
type builtinFunc func(s *Shell, args []string)

var builtins = map[string]builtinFunc{
	"exit":    builtinExit,
	"help":    builtinHelp,
	"jobs":    builtinJobs,
	"fg":      builtinFg,
	"kill":    builtinKill,
	"feed":    builtinFeed,
	"eof":     builtinEOF,
	"vars":    builtinVars,
	"capture": builtinCapture,
}

// parseJobRef accepts the %N shell form or a bare ordinal.
func parseJobRef(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad job reference %q", arg)
	}
	return id, nil
}

// inputTarget picks the stream a feed or eof call addresses: stdin by
// default, stddati behind the -d flag.
func inputTarget(args []string) (stream.Kind, []string) {
	if len(args) > 0 && args[0] == "-d" {
		return stream.Stddati, args[1:]
	}
	return stream.Stdin, args
}

func builtinExit(s *Shell, args []string) {
	if len(args) > 0 {
		code, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(s.errw, "exit: bad code %q\n", args[0])
			return
		}
		s.exitCode = code
	}
	s.quit = true
}

func builtinHelp(s *Shell, args []string) {
	fmt.Fprint(s.out, `builtins:
  jobs                  list tracked jobs
  fg %N                 close a job's inputs, replay its output, wait for it
  kill [-9] %N          terminate (-9: kill) a job
  feed [-d] %N text...  write a line to a job's stdin (-d: bytes to stddati)
  eof [-d] %N           close a job's stdin (-d: stddati), delivering EOF
  capture NAME cmd...   run cmd, store its stdout in variable NAME
  vars [NAME]           show captured variables
  help                  this text
  exit [code]           leave the shell
a trailing & runs a command in the background: its four output streams are
captured for fg, and stdin/stddati stay open for feed and eof
`)
}

func builtinJobs(s *Shell, args []string) {
	entries := s.jobs.List()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "no jobs")
		return
	}
	printJobsTable(s.out, entries)
}

// builtinFg brings a background job to the foreground. The prompt is blocked
// from here on, so nobody could feed the job anymore; its held inputs are
// closed, everything captured so far is replayed, live output follows, and
// the call returns once the job is reaped.
func builtinFg(s *Shell, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.errw, "usage: fg %N")
		return
	}
	id, err := parseJobRef(args[0])
	if err != nil {
		fmt.Fprintf(s.errw, "fg: %v\n", err)
		return
	}
	e, err := s.jobs.Get(id)
	if err != nil {
		fmt.Fprintf(s.errw, "fg: %v\n", err)
		return
	}

	for _, k := range stream.ByDirection(stream.ParentToChild) {
		_ = e.Handle.CloseInput(k)
	}

	cfg := s.config()
	targets := map[stream.Kind]sink.Sink{
		stream.Stdout: s.termOut.Stream(""),
		stream.Stderr: s.termErr.Stream(""),
		stream.Stddbg: s.termErr.Stream(cfg.Streams.DebugLabel),
	}

	var wg sync.WaitGroup
	for k, dst := range targets {
		buf := e.Buffers[k]
		if buf == nil {
			continue
		}
		wg.Add(1)
		go func(dst sink.Sink, ch <-chan []byte) {
			defer wg.Done()
			for chunk := range ch {
				_, _ = dst.Write(chunk)
			}
			_ = dst.Close()
		}(dst, buf.Subscribe(64))
	}
	wg.Wait()

	s.waitForeground(e)
}

func builtinKill(s *Shell, args []string) {
	force := false
	if len(args) > 0 && args[0] == "-9" {
		force = true
		args = args[1:]
	}
	if len(args) != 1 {
		fmt.Fprintln(s.errw, "usage: kill [-9] %N")
		return
	}
	id, err := parseJobRef(args[0])
	if err != nil {
		fmt.Fprintf(s.errw, "kill: %v\n", err)
		return
	}

	if force {
		err = s.jobs.Kill(id)
	} else {
		err = s.jobs.Terminate(id)
	}
	if err != nil {
		fmt.Fprintf(s.errw, "kill: %v\n", err)
	}
}

// builtinFeed writes to a held input stream of a background job. Text fed to
// stdin gets a trailing newline; -d sends the bytes to stddati verbatim.
func builtinFeed(s *Shell, args []string) {
	k, args := inputTarget(args)
	if len(args) < 1 {
		fmt.Fprintln(s.errw, "usage: feed [-d] %N text...")
		return
	}
	id, err := parseJobRef(args[0])
	if err != nil {
		fmt.Fprintf(s.errw, "feed: %v\n", err)
		return
	}
	e, err := s.jobs.Get(id)
	if err != nil {
		fmt.Fprintf(s.errw, "feed: %v\n", err)
		return
	}
	w, err := e.Handle.Input(k)
	if err != nil {
		fmt.Fprintf(s.errw, "feed: %v\n", err)
		return
	}

	payload := strings.Join(args[1:], " ")
	if k == stream.Stdin {
		payload += "\n"
	}
	if _, err := io.WriteString(w, payload); err != nil {
		fmt.Fprintf(s.errw, "feed: %v\n", err)
	}
}

// builtinEOF closes a held input stream, which is the only way a child ever
// sees end-of-file on it.
func builtinEOF(s *Shell, args []string) {
	k, args := inputTarget(args)
	if len(args) != 1 {
		fmt.Fprintln(s.errw, "usage: eof [-d] %N")
		return
	}
	id, err := parseJobRef(args[0])
	if err != nil {
		fmt.Fprintf(s.errw, "eof: %v\n", err)
		return
	}
	e, err := s.jobs.Get(id)
	if err != nil {
		fmt.Fprintf(s.errw, "eof: %v\n", err)
		return
	}
	if err := e.Handle.CloseInput(k); err != nil {
		fmt.Fprintf(s.errw, "eof: %v\n", err)
	}
}

func builtinVars(s *Shell, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(args) == 1 {
		v, ok := s.vars[args[0]]
		if !ok {
			fmt.Fprintf(s.errw, "vars: %q is not set\n", args[0])
			return
		}
		fmt.Fprintln(s.out, v)
		return
	}

	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(s.out, "%s=%s\n", n, s.vars[n])
	}
}

// builtinCapture runs a command in the foreground with its stdout captured
// into a named variable instead of the terminal. stderr and stddbg still
// stream live.
func builtinCapture(s *Shell, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.errw, "usage: capture NAME command [args...]")
		return
	}
	name := args[0]
	cfg := s.config()

	buf := sink.RunNewBuffer()
	h, err := spawn.Spawn(spawn.Plan{
		Command: lib.Command{Command: args[1], Args: args[2:]},
		Outputs: map[stream.Kind]sink.Sink{
			stream.Stdout: buf,
			stream.Stderr: s.termErr.Stream(""),
			stream.Stddbg: s.termErr.Stream(cfg.Streams.DebugLabel),
		},
	})
	if err != nil {
		fmt.Fprintf(s.errw, "capture: %v\n", err)
		if h == nil {
			return
		}
	}
	e := s.jobs.Register(h, jobs.Foreground, nil)
	s.waitForeground(e)

	// Reaped is gated on the drains, so the buffer is complete here.
	s.mu.Lock()
	s.vars[name] = strings.TrimRight(buf.String(), "\n")
	s.mu.Unlock()
}
