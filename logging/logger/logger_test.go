package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := &Logger{Logger: logrus.New()}
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(&buf)
	return l, &buf
}

func TestRequestIDCarriedIntoEntries(t *testing.T) {
	l, buf := newBufferedLogger()

	ctx := WithRequestID(context.Background(), "req-1")
	l.Info(ctx, "job registered", "job_id", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry[RequestIDKey] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry[RequestIDKey])
	}
	if entry["job_id"] != "abc" {
		t.Errorf("job_id = %v, want abc", entry["job_id"])
	}
	if entry["msg"] != "job registered" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestRequestIDAbsent(t *testing.T) {
	l, buf := newBufferedLogger()

	l.Info(context.Background(), "plain entry")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if _, ok := entry[RequestIDKey]; ok {
		t.Errorf("entry without request context carries %s", RequestIDKey)
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context returned a request id")
	}
}

func TestAdjustLevel(t *testing.T) {
	l, _ := newBufferedLogger()

	l.AdjustLevel(int(logrus.DebugLevel))
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}
	l.AdjustLevel(int(logrus.WarnLevel))
	if l.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", l.GetLevel())
	}
}
