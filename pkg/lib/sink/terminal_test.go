package sink

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

// syncBuffer lets concurrent termStream writers share one device in tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTerminalHoldsPartialLines(t *testing.T) {
	var dev bytes.Buffer
	term := NewTerminal(&dev)
	s := term.Stream("")

	if _, err := s.Write([]byte("par")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.String(); got != "" {
		t.Fatalf("partial line leaked to device: %q", got)
	}

	if _, err := s.Write([]byte("tial\nnext")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := dev.String(); got != "partial\n" {
		t.Fatalf("expected completed line only, got %q", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := dev.String(); got != "partial\nnext" {
		t.Fatalf("expected close to flush remainder, got %q", got)
	}
}

func TestTerminalLabelsEachLine(t *testing.T) {
	var dev bytes.Buffer
	term := NewTerminal(&dev)
	s := term.Stream("dbg")

	if _, err := s.Write([]byte("first\nsecond\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := "[dbg] first\n[dbg] second\n"
	if got := dev.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTerminalInterleavesWholeLinesOnly(t *testing.T) {
	dev := &syncBuffer{}
	term := NewTerminal(dev)

	const rounds = 200
	var wg sync.WaitGroup
	for _, word := range []string{"alpha", "bravo"} {
		wg.Add(1)
		go func(word string) {
			defer wg.Done()
			s := term.Stream("")
			for i := 0; i < rounds; i++ {
				// Split the line across two writes; the second completes it.
				if _, err := s.Write([]byte(word[:2])); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
				if _, err := s.Write([]byte(word[2:] + "\n")); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
			}
		}(word)
	}
	wg.Wait()

	counts := map[string]int{}
	for _, line := range strings.Split(strings.TrimSuffix(dev.String(), "\n"), "\n") {
		counts[line]++
	}
	if len(counts) != 2 || counts["alpha"] != rounds || counts["bravo"] != rounds {
		t.Fatalf("lines were torn across streams: %v", counts)
	}
}
