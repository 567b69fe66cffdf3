package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type edit struct {
	Offset   int64  `json:"offset" jsonschema:"required,description=byte offset into the file's current content where the edit starts"`
	Previous string `json:"previous" jsonschema:"required,description=the exact text expected at that offset"`
	Replace  string `json:"replace" jsonschema:"required,description=the text to put in its place"`
}

type editFileRequest struct {
	Filename string `json:"filename" jsonschema:"required"`
	Edits    []edit `json:"edits" jsonschema:"required,description=one or more non-overlapping edits"`
}

type editFileResponse struct {
	Diff string `json:"diff" jsonschema:"description=an inline preview of what changed with insertions and deletions marked by ANSI colors"`
}

func editFile(ctx context.Context, req editFileRequest) (editFileResponse, error) {
	rt, ok := runtime.From(ctx)
	if !ok {
		return editFileResponse{}, errors.New("no runtime attached to context")
	}
	original, err := rt.ReadFile(req.Filename)
	if err != nil {
		return editFileResponse{}, tool.NewError(fmt.Errorf("edit_file %s: %w", req.Filename, err))
	}

	content := original
	ordered := append([]edit{}, req.Edits...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Offset > ordered[j].Offset })

	// Apply from the highest offset down so earlier edits' byte ranges
	// stay valid as later (lower-offset) edits are applied.
	for i, e := range ordered {
		start := int(e.Offset)
		end := start + len(e.Previous)
		if start < 0 || end > len(content) {
			return editFileResponse{}, tool.NewError(fmt.Errorf("edit %d: offset %d out of range", i, e.Offset))
		}
		if content[start:end] != e.Previous {
			return editFileResponse{}, tool.NewError(fmt.Errorf("edit %d: previous text does not match file content at offset %d", i, e.Offset))
		}
		content = content[:start] + e.Replace + content[end:]
	}

	if err := rt.WriteFile(req.Filename, content); err != nil {
		return editFileResponse{}, tool.NewError(fmt.Errorf("edit_file %s: %w", req.Filename, err))
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, content, false)
	return editFileResponse{Diff: dmp.DiffPrettyText(diffs)}, nil
}

func EditFile() tool.Tool {
	return newTool("edit_file", "Apply one or more exact-match text substitutions to an existing file.", editFile)
}
