package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type writeFileRequest struct {
	Filename string `json:"filename" jsonschema:"required,description=path relative to the working directory"`
	Content  string `json:"content" jsonschema:"required"`
}

type writeFileResponse struct {
	Ok bool `json:"ok"`
}

func writeFile(ctx context.Context, req writeFileRequest) (writeFileResponse, error) {
	rt, ok := runtime.From(ctx)
	if !ok {
		return writeFileResponse{}, errors.New("no runtime attached to context")
	}
	if err := rt.WriteFile(req.Filename, req.Content); err != nil {
		return writeFileResponse{}, tool.NewError(fmt.Errorf("write_file %s: %w", req.Filename, err))
	}
	return writeFileResponse{Ok: true}, nil
}

func WriteFile() tool.Tool {
	return newTool("write_file", "Create or overwrite a file with the given content.", writeFile)
}
