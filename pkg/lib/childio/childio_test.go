package childio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

func TestResolveMapsTable(t *testing.T) {
	dbgR, dbgW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer dbgR.Close()
	defer dbgW.Close()
	datiR, datiW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer datiR.Close()
	defer datiW.Close()
	datoR, datoW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer datoR.Close()
	defer datoW.Close()

	t.Setenv(stream.Stdin.EnvVar(), "0")
	t.Setenv(stream.Stdout.EnvVar(), "1")
	t.Setenv(stream.Stderr.EnvVar(), "2")
	t.Setenv(stream.Stddbg.EnvVar(), strconv.Itoa(int(dbgW.Fd())))
	t.Setenv(stream.Stddati.EnvVar(), strconv.Itoa(int(datiR.Fd())))
	t.Setenv(stream.Stddato.EnvVar(), strconv.Itoa(int(datoW.Fd())))

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if s.File(stream.Stdin) != os.Stdin {
		t.Error("stdin did not resolve to the standard input file")
	}
	if s.File(stream.Stdout) != os.Stdout {
		t.Error("stdout did not resolve to the standard output file")
	}
	if s.File(stream.Stderr) != os.Stderr {
		t.Error("stderr did not resolve to the standard error file")
	}

	// The extra streams resolve to the descriptors named in the table.
	if _, err := io.WriteString(s.Debug(), "dbg"); err != nil {
		t.Fatalf("write to stddbg failed: %v", err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(dbgR, buf); err != nil || string(buf) != "dbg" {
		t.Fatalf("stddbg did not reach its pipe: %v %q", err, buf)
	}

	if _, err := datiW.Write([]byte("in!")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := io.ReadFull(s.DataIn(), buf); err != nil || string(buf) != "in!" {
		t.Fatalf("stddati did not read from its pipe: %v %q", err, buf)
	}

	if _, err := s.DataOut().Write([]byte("out")); err != nil {
		t.Fatalf("write to stddato failed: %v", err)
	}
	if _, err := io.ReadFull(datoR, buf); err != nil || string(buf) != "out" {
		t.Fatalf("stddato did not reach its pipe: %v %q", err, buf)
	}

	// The table is consumed: nothing is left for user code or grandchildren.
	for _, k := range stream.Kinds() {
		if _, ok := os.LookupEnv(k.EnvVar()); ok {
			t.Errorf("%s still set after resolve", k.EnvVar())
		}
	}
	if IsChild() {
		t.Error("IsChild still true after resolve")
	}
}

func TestResolveRequiresFullTable(t *testing.T) {
	if _, err := Resolve(); !errors.Is(err, ErrNotChild) {
		t.Fatalf("expected ErrNotChild with no table, got %v", err)
	}

	t.Setenv(stream.Stdin.EnvVar(), "0")
	t.Setenv(stream.Stdout.EnvVar(), "1")
	if !IsChild() {
		t.Error("IsChild false with table present")
	}
	if _, err := Resolve(); !errors.Is(err, ErrNotChild) {
		t.Fatalf("expected ErrNotChild for partial table, got %v", err)
	}
}

func TestResolveRejectsMalformedValue(t *testing.T) {
	for _, k := range stream.Kinds() {
		t.Setenv(k.EnvVar(), strconv.Itoa(k.Slot()))
	}
	t.Setenv(stream.Stddato.EnvVar(), "not-a-number")

	if _, err := Resolve(); err == nil {
		t.Fatal("expected error for malformed descriptor value")
	}
}

// TestHelperChild is not a test: it is the program the bootstrap round-trip
// test spawns. It resolves its streams like any shell-aware child and
// exercises all six.
func TestHelperChild(t *testing.T) {
	if os.Getenv("HEXSH_CHILD_HELPER") != "1" {
		t.Skip("helper process, only runs when re-executed")
	}
	defer os.Exit(0)

	s, err := Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
	if IsChild() {
		fmt.Fprintln(os.Stderr, "bootstrap table leaked past resolve")
		os.Exit(4)
	}

	if _, err := io.WriteString(s.Debug(), "dbg-ready\n"); err != nil {
		os.Exit(5)
	}
	if _, err := io.Copy(s.DataOut(), s.DataIn()); err != nil {
		os.Exit(6)
	}
	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		os.Exit(7)
	}
	fmt.Printf("in:%s", in)
}

func TestBootstrapRoundTrip(t *testing.T) {
	buffers := map[stream.Kind]*sink.Buffer{}
	outputs := map[stream.Kind]sink.Sink{}
	for _, k := range stream.ByDirection(stream.ChildToParent) {
		b := sink.RunNewBuffer()
		buffers[k] = b
		outputs[k] = b
	}

	h, err := spawn.Spawn(spawn.Plan{
		Command: lib.Command{
			Command: os.Args[0],
			Args:    []string{"-test.run=TestHelperChild"},
		},
		Env: []string{"HEXSH_CHILD_HELPER=1"},
		Inputs: map[stream.Kind]spawn.Input{
			stream.Stdin:   {Reader: strings.NewReader("hello")},
			stream.Stddati: {Reader: strings.NewReader("BIN-PAYLOAD")},
		},
		Outputs: outputs,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if st.ExitCode == nil || *st.ExitCode != 0 {
		t.Fatalf("helper child failed: exit %v, stderr %q", st.ExitCode, buffers[stream.Stderr].String())
	}

	if got := buffers[stream.Stddbg].String(); got != "dbg-ready\n" {
		t.Fatalf("stddbg: expected %q, got %q", "dbg-ready\n", got)
	}
	if got := buffers[stream.Stddato].String(); got != "BIN-PAYLOAD" {
		t.Fatalf("stddato: expected %q, got %q", "BIN-PAYLOAD", got)
	}
	if got := buffers[stream.Stdout].String(); got != "in:hello" {
		t.Fatalf("stdout: expected %q, got %q", "in:hello", got)
	}
}
