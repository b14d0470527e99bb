package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "user-1")
	log.WithContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if line["request_id"] != "req-1" || line["user_id"] != "user-1" {
		t.Fatalf("missing context fields: %v", line)
	}
}

func TestHistoryWriteFailedLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.HistoryWriteFailed("lead", "abc", "status_change", errors.New("relation does not exist"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if line["level"] != "WARN" || line["action"] != "status_change" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestWithContextWithoutFieldsKeepsLogger(t *testing.T) {
	log := Nop()
	if got := log.WithContext(context.Background()); got != log {
		t.Fatal("expected the same logger when ctx carries no fields")
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty request id")
	}
}
