package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hexsh/hexsh/pkg/lib"
	"github.com/hexsh/hexsh/pkg/lib/sink"
	"github.com/hexsh/hexsh/pkg/lib/spawn"
	"github.com/hexsh/hexsh/pkg/lib/stream"
)

func spawnSh(t *testing.T, script string) (*spawn.Handle, map[stream.Kind]*sink.Buffer) {
	t.Helper()

	buffers := map[stream.Kind]*sink.Buffer{}
	outputs := map[stream.Kind]sink.Sink{}
	for _, k := range stream.ByDirection(stream.ChildToParent) {
		b := sink.RunNewBuffer()
		buffers[k] = b
		outputs[k] = b
	}

	h, err := spawn.Spawn(spawn.Plan{
		Command: lib.Command{Command: "sh", Args: []string{"-c", script}},
		Outputs: outputs,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	return h, buffers
}

func TestRegisterAndPollProgression(t *testing.T) {
	table := NewTable()
	h, buffers := spawnSh(t, "sleep 10")
	e := table.Register(h, Background, buffers)

	st, err := table.Poll(e.ID)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if st.State != lib.StateRunning {
		t.Fatalf("expected Running, got %v", st.State)
	}

	if err := table.Terminate(e.ID); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err = table.Poll(e.ID)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if st.State == lib.StateReaped {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st.State != lib.StateReaped {
		t.Fatalf("job did not reach Reaped, still %v", st.State)
	}
	if st.ExitCode == nil || *st.ExitCode == 0 {
		t.Fatalf("expected nonzero termination code, got %v", st.ExitCode)
	}
}

func TestWaitDeliversOutputBeforeReturning(t *testing.T) {
	table := NewTable()
	h, buffers := spawnSh(t, "echo done")
	e := table.Register(h, Foreground, buffers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := table.Wait(ctx, e.ID)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if st.State != lib.StateReaped {
		t.Fatalf("expected Reaped, got %v", st.State)
	}

	// Wait returning means the drains are finished; the buffer must be
	// complete without any settling delay.
	if got := e.Buffers[stream.Stdout].String(); got != "done\n" {
		t.Fatalf("expected %q, got %q", "done\n", got)
	}
}

func TestTakeFinishedAnnouncesOnce(t *testing.T) {
	table := NewTable()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h1, b1 := spawnSh(t, "true")
	e1 := table.Register(h1, Background, b1)
	h2, b2 := spawnSh(t, "true")
	e2 := table.Register(h2, Background, b2)

	if _, err := table.Wait(ctx, e1.ID); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if _, err := table.Wait(ctx, e2.ID); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	finished := table.TakeFinished()
	if len(finished) != 2 || finished[0].ID != e1.ID || finished[1].ID != e2.ID {
		t.Fatalf("expected jobs %d and %d, got %v", e1.ID, e2.ID, finished)
	}

	if again := table.TakeFinished(); len(again) != 0 {
		t.Fatalf("expected no repeat announcements, got %v", again)
	}
	if entries := table.List(); len(entries) != 0 {
		t.Fatalf("expected empty table after announcements, got %d entries", len(entries))
	}
}

func TestListKeepsOrdinalOrder(t *testing.T) {
	table := NewTable()
	for i := 0; i < 3; i++ {
		h, buffers := spawnSh(t, "sleep 5")
		table.Register(h, Background, buffers)
	}
	defer table.Shutdown(3 * time.Second)

	entries := table.List()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.ID != i+1 {
			t.Fatalf("expected ordinal %d at position %d, got %d", i+1, i, e.ID)
		}
	}
}

func TestUnknownOrdinal(t *testing.T) {
	table := NewTable()

	if _, err := table.Poll(99); !errors.Is(err, ErrNoSuchJob) {
		t.Fatalf("expected ErrNoSuchJob, got %v", err)
	}
	if _, err := table.Wait(context.Background(), 99); !errors.Is(err, ErrNoSuchJob) {
		t.Fatalf("expected ErrNoSuchJob, got %v", err)
	}
	if err := table.Terminate(99); !errors.Is(err, ErrNoSuchJob) {
		t.Fatalf("expected ErrNoSuchJob, got %v", err)
	}
	if err := table.Kill(99); !errors.Is(err, ErrNoSuchJob) {
		t.Fatalf("expected ErrNoSuchJob, got %v", err)
	}
}

func TestRemoveForgetsJob(t *testing.T) {
	table := NewTable()
	h, buffers := spawnSh(t, "true")
	e := table.Register(h, Foreground, buffers)

	table.Remove(e.ID)
	if _, err := table.Get(e.ID); !errors.Is(err, ErrNoSuchJob) {
		t.Fatalf("expected ErrNoSuchJob after removal, got %v", err)
	}

	// The handle is still usable directly.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait on removed job's handle failed: %v", err)
	}
}

func TestShutdownReapsEverything(t *testing.T) {
	table := NewTable()
	var ids []int
	for i := 0; i < 2; i++ {
		h, buffers := spawnSh(t, "sleep 30")
		e := table.Register(h, Background, buffers)
		ids = append(ids, e.ID)
	}

	start := time.Now()
	table.Shutdown(3 * time.Second)
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Shutdown took too long: %v", elapsed)
	}

	for _, id := range ids {
		st, err := table.Poll(id)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if st.State != lib.StateReaped {
			t.Fatalf("job %d not reaped after shutdown, state %v", id, st.State)
		}
	}
}
