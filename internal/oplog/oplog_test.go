package oplog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogfWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.log")
	l := New(path)
	defer l.Close()

	l.Logf("invalid transition on %s#%d: %s", "acme/widgets", 7, "new -> merged")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "acme/widgets#7") {
		t.Errorf("log line missing content: %q", line)
	}
	if !strings.HasPrefix(line, "[") {
		t.Errorf("log line missing timestamp prefix: %q", line)
	}
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var l *Logger
	l.Logf("should not panic")
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	empty := New("")
	empty.Logf("also fine")
	_ = empty.Close()
}
