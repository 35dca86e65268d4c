package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"flacbatch/internal/logging"
	"flacbatch/internal/media"
)

func TestPublishNeverBlocksWhenFull(t *testing.T) {
	sink := NewSink(2)
	for i := 0; i < 5; i++ {
		sink.Publish(Event{Stage: StageConversion, Done: i + 1, Total: 5})
	}
	if got := sink.Dropped(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
	sink.Close()
	var received int
	for range sink.Events() {
		received++
	}
	if received != 2 {
		t.Fatalf("received = %d, want 2", received)
	}
}

func TestCloseIsIdempotentAndPublishAfterCloseIsNoop(t *testing.T) {
	sink := NewSink(1)
	sink.Close()
	sink.Close()
	sink.Publish(Event{Stage: StageStaging})
	if sink.Dropped() != 0 {
		t.Fatalf("publish after close should not count as dropped")
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	var sink *Sink
	sink.Publish(Event{})
	sink.Close()
	if sink.Events() != nil || sink.Dropped() != 0 {
		t.Fatal("nil sink should be inert")
	}
}

func TestConcurrentPublishers(t *testing.T) {
	sink := NewSink(1000)
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sink.Publish(Event{Stage: StageConversion})
			}
		}()
	}
	wg.Wait()
	sink.Close()
	var received int64
	for range sink.Events() {
		received++
	}
	if received+sink.Dropped() != 1000 {
		t.Fatalf("received %d + dropped %d != 1000", received, sink.Dropped())
	}
}

func TestConsumeDrainsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	sink := NewSink(10)
	var seen []string
	done := Consume(sink.Events(),
		LogConsumer(logger, logging.NewProgressSampler(50)),
		func(ev Event) { seen = append(seen, ev.RelPath) },
	)
	sink.Publish(Event{Stage: StageConversion, Done: 1, Total: 2, RelPath: "a.wav", Outcome: media.OutcomeSuccess})
	sink.Publish(Event{Stage: StageConversion, Done: 2, Total: 2, RelPath: "b.wav", Outcome: media.OutcomeFailure, Message: "ffmpeg error (code 1)"})
	sink.Close()
	<-done

	if len(seen) != 2 {
		t.Fatalf("seen = %v", seen)
	}
	out := buf.String()
	if !strings.Contains(out, "file failed") || !strings.Contains(out, "rel_path=b.wav") {
		t.Fatalf("missing failure log: %q", out)
	}
	if !strings.Contains(out, "done=2") {
		t.Fatalf("missing final progress log: %q", out)
	}
}
