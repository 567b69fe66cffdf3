package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type readFileRequest struct {
	Filename string `json:"filename" jsonschema:"required,description=path relative to the working directory"`
}

type readFileResponse struct {
	Content string `json:"content"`
}

func readFile(ctx context.Context, req readFileRequest) (readFileResponse, error) {
	rt, ok := runtime.From(ctx)
	if !ok {
		return readFileResponse{}, errors.New("no runtime attached to context")
	}
	content, err := rt.ReadFile(req.Filename)
	if err != nil {
		return readFileResponse{}, tool.NewError(fmt.Errorf("read_file %s: %w", req.Filename, err))
	}
	return readFileResponse{Content: content}, nil
}

func ReadFile() tool.Tool {
	return newTool("read_file", "Read the full contents of a file.", readFile)
}
