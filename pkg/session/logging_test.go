package session

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogHandlers_LoggerCreatesOneFilePerName(t *testing.T) {
	dir := t.TempDir()
	lh := NewLogHandlers(dir)
	defer lh.Close()

	modelLogger, err := lh.Logger("model")
	if err != nil {
		t.Fatalf("Logger(model): %v", err)
	}
	modelLogger.Info("hello from model")

	toolLogger, err := lh.Logger("tool")
	if err != nil {
		t.Fatalf("Logger(tool): %v", err)
	}
	toolLogger.Info("hello from tool")

	modelPath := filepath.Join(dir, "logs", "model.jsonl")
	toolPath := filepath.Join(dir, "logs", "tool.jsonl")
	if _, err := os.Stat(modelPath); err != nil {
		t.Fatalf("expected %s to exist: %v", modelPath, err)
	}
	if _, err := os.Stat(toolPath); err != nil {
		t.Fatalf("expected %s to exist: %v", toolPath, err)
	}
}

func TestLogHandlers_LoggerReturnsSameSinkOnRepeatedCalls(t *testing.T) {
	dir := t.TempDir()
	lh := NewLogHandlers(dir)
	defer lh.Close()

	l1, err := lh.Logger("model")
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	l1.Info("first line")

	l2, err := lh.Logger("model")
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	l2.Info("second line")

	f, err := os.Open(filepath.Join(dir, "logs", "model.jsonl"))
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected both Logger calls to append to the same file, got %d lines", lines)
	}
}

func TestLogHandlers_EmptySessionDirFallsBackToDiscard(t *testing.T) {
	lh := NewLogHandlers("")
	defer lh.Close()

	l, err := lh.Logger("model-claude")
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	l.Info("should go nowhere, and must not panic")
}

func TestLogHandlers_RejectsNameWithPathSeparator(t *testing.T) {
	lh := NewLogHandlers(t.TempDir())
	_, err := lh.Logger("nested/name")
	if err == nil {
		t.Fatal("expected an error for a log name containing a path separator")
	}
}

func TestLogHandlers_NameWithDotIsUsedVerbatim(t *testing.T) {
	dir := t.TempDir()
	lh := NewLogHandlers(dir)
	defer lh.Close()

	if _, err := lh.Logger("custom.log"); err != nil {
		t.Fatalf("Logger(custom.log): %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "logs", "custom.log")); err != nil {
		t.Fatalf("expected the dotted name to be used verbatim as the filename: %v", err)
	}
}
