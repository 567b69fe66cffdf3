package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/arborist-ai/turnloop/pkg/runtime"
)

func withRuntime(t *testing.T) (context.Context, string) {
	t.Helper()
	dir := t.TempDir()
	rt := runtime.NewLocal(dir)
	return runtime.With(context.Background(), rt), dir
}

func TestWriteThenReadFile(t *testing.T) {
	ctx, _ := withRuntime(t)

	out, err := WriteFile().Execute(ctx, map[string]any{"filename": "greeting.txt", "content": "hello world"})
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.Contains(out, `"ok":true`) {
		t.Fatalf("write_file output = %q, want ok:true", out)
	}

	out, err = ReadFile().Execute(ctx, map[string]any{"filename": "greeting.txt"})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	var resp struct{ Content string }
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal read_file output: %v", err)
	}
	if resp.Content != "hello world" {
		t.Fatalf("read_file content = %q, want %q", resp.Content, "hello world")
	}
}

func TestReadFile_MissingFileIsAToolError(t *testing.T) {
	ctx, _ := withRuntime(t)
	_, err := ReadFile().Execute(ctx, map[string]any{"filename": "nope.txt"})
	if err == nil {
		t.Fatal("expected an error reading a nonexistent file")
	}
}

func TestExecCommand_CapturesStdoutAndExitCode(t *testing.T) {
	ctx, _ := withRuntime(t)
	out, err := ExecCommand().Execute(ctx, map[string]any{"command_line": "echo hi"})
	if err != nil {
		t.Fatalf("exec_command: %v", err)
	}
	var resp struct {
		ExitCode int `json:"exit_code"`
		Stdout   string
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal exec_command output: %v", err)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", resp.ExitCode)
	}
	if strings.TrimSpace(resp.Stdout) != "hi" {
		t.Fatalf("Stdout = %q, want %q", resp.Stdout, "hi")
	}
}

func TestExecCommand_NonZeroExitIsNotAToolError(t *testing.T) {
	ctx, _ := withRuntime(t)
	out, err := ExecCommand().Execute(ctx, map[string]any{"command_line": "exit 3"})
	if err != nil {
		t.Fatalf("exec_command with a failing command should not itself error: %v", err)
	}
	var resp struct {
		ExitCode int `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", resp.ExitCode)
	}
}

func TestExecCommand_WithoutRuntimeErrors(t *testing.T) {
	_, err := ExecCommand().Execute(context.Background(), map[string]any{"command_line": "echo hi"})
	if err == nil {
		t.Fatal("expected an error when no runtime is attached to the context")
	}
}

func TestEditFile_AppliesNonOverlappingEditsFromHighestOffset(t *testing.T) {
	ctx, _ := withRuntime(t)
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "f.txt", "content": "one two three"}); err != nil {
		t.Fatalf("write_file: %v", err)
	}

	out, err := EditFile().Execute(ctx, map[string]any{
		"filename": "f.txt",
		"edits": []map[string]any{
			{"offset": 0, "previous": "one", "replace": "ONE"},
			{"offset": 4, "previous": "two", "replace": "TWO"},
		},
	})
	if err != nil {
		t.Fatalf("edit_file: %v", err)
	}
	if !strings.Contains(out, "diff") {
		t.Fatalf("edit_file output = %q, want a diff field", out)
	}

	read, err := ReadFile().Execute(ctx, map[string]any{"filename": "f.txt"})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	var resp struct{ Content string }
	if err := json.Unmarshal([]byte(read), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Content != "ONE TWO three" {
		t.Fatalf("content after edits = %q, want %q", resp.Content, "ONE TWO three")
	}
}

func TestEditFile_MismatchedPreviousTextErrors(t *testing.T) {
	ctx, _ := withRuntime(t)
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "f.txt", "content": "actual content"}); err != nil {
		t.Fatalf("write_file: %v", err)
	}

	_, err := EditFile().Execute(ctx, map[string]any{
		"filename": "f.txt",
		"edits":    []map[string]any{{"offset": 0, "previous": "wrong", "replace": "x"}},
	})
	if err == nil {
		t.Fatal("expected an error when previous text does not match")
	}
}

func TestSearchFiles_ByPathPattern(t *testing.T) {
	ctx, dir := withRuntime(t)
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "a.go", "content": "package a"}); err != nil {
		t.Fatalf("write_file a.go: %v", err)
	}
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "b.txt", "content": "not go"}); err != nil {
		t.Fatalf("write_file b.txt: %v", err)
	}

	out, err := SearchFiles().Execute(ctx, map[string]any{"path_pattern": "*.go"})
	if err != nil {
		t.Fatalf("search_files: %v", err)
	}
	var resp struct {
		Files []struct{ Path string }
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Path != "a.go" {
		t.Fatalf("search_files by pattern = %+v, want just a.go", resp.Files)
	}
	_ = dir
}

func TestSearchFiles_ByGrepContent(t *testing.T) {
	ctx, _ := withRuntime(t)
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "a.txt", "content": "needle here"}); err != nil {
		t.Fatalf("write_file a.txt: %v", err)
	}
	if _, err := WriteFile().Execute(ctx, map[string]any{"filename": "b.txt", "content": "nothing to see"}); err != nil {
		t.Fatalf("write_file b.txt: %v", err)
	}

	out, err := SearchFiles().Execute(ctx, map[string]any{"grep": "needle"})
	if err != nil {
		t.Fatalf("search_files: %v", err)
	}
	var resp struct {
		Files []struct{ Path string }
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Path != "a.txt" {
		t.Fatalf("search_files by grep = %+v, want just a.txt", resp.Files)
	}
}

func TestSearchFiles_NeitherPatternNorGrepErrors(t *testing.T) {
	ctx, _ := withRuntime(t)
	_, err := SearchFiles().Execute(ctx, map[string]any{})
	if err == nil {
		t.Fatal("expected an error when neither path_pattern nor grep is given")
	}
}

func TestAll_ReturnsFiveDistinctlyNamedTools(t *testing.T) {
	all := All()
	if len(all) != 5 {
		t.Fatalf("len(All()) = %d, want 5", len(all))
	}
	seen := map[string]bool{}
	for _, tl := range all {
		if seen[tl.Name()] {
			t.Fatalf("duplicate tool name %q in All()", tl.Name())
		}
		seen[tl.Name()] = true
		if tl.Parameters() == nil {
			t.Fatalf("tool %q has a nil Parameters schema", tl.Name())
		}
	}
}
