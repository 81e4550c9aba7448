package checklog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogAppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	if err := l.Log(NewEvent(TypeCheckStarted)); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := l.Log(NewEvent(TypeVerdict).WithPresent(true).WithConfidence("high").WithLatency(812.5)); err != nil {
		t.Fatalf("log: %v", err)
	}

	file, err := os.Open(filepath.Join(dir, "checks.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != TypeCheckStarted {
		t.Errorf("unexpected first event type %q", events[0].Type)
	}
	if events[1].Present == nil || !*events[1].Present {
		t.Errorf("present flag lost: %+v", events[1])
	}
	if events[1].LatencyMs != 812.5 {
		t.Errorf("latency lost: %v", events[1].LatencyMs)
	}
	for _, e := range events {
		if !strings.HasPrefix(e.EventID, "chk-") || len(e.EventID) != 12 {
			t.Errorf("malformed event id %q", e.EventID)
		}
		if e.Version != EventVersion || e.TimestampMs == 0 {
			t.Errorf("defaults not applied: %+v", e)
		}
	}
}

func TestNilLogDiscards(t *testing.T) {
	l := New("")
	if l != nil {
		t.Fatalf("empty dir should disable logging")
	}
	if err := l.Log(NewEvent(TypeWindowEnded)); err != nil {
		t.Fatalf("nil log should no-op, got %v", err)
	}
}
