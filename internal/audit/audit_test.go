package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestJSONWriterSinkWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, code := range []string{CodeLoginFail, CodeLoginSuccess} {
		if err := sink.Append(context.Background(), Record{Timestamp: ts, Username: "alice", Code: code, Origin: "1.2.3.4"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var got Record
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Code != CodeLoginSuccess || got.Origin != "1.2.3.4" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONWriterSinkReportsWriteError(t *testing.T) {
	sink := NewJSONWriterSink(failingWriter{})
	if err := sink.Append(context.Background(), Record{Code: CodeLogout}); err == nil {
		t.Fatal("expected write error to surface")
	}
}

func TestChannelSinkHonoursContext(t *testing.T) {
	sink := NewChannelSink(1)
	if err := sink.Append(context.Background(), Record{Code: CodeLogout}); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Append(ctx, Record{Code: CodeLogout}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled on full channel, got %v", err)
	}

	rec := <-sink.Records()
	if rec.Code != CodeLogout {
		t.Fatalf("unexpected record %+v", rec)
	}
}

type collectSink struct {
	mu      sync.Mutex
	records []Record
}

func (c *collectSink) Append(_ context.Context, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return nil
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Record{Code: CodeCheckSession})
	}
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 20 {
		t.Fatalf("expected 20 delivered records, got %d", len(sink.records))
	}
}

type blockingSink struct {
	release chan struct{}
}

func (b blockingSink) Append(context.Context, Record) error {
	<-b.release
	return nil
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Record{Code: CodeLoginFail})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a tiny buffer")
	}

	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNilSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Record{})
	d.Close()
	if d.Dropped() != 0 || d.Failed() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}
