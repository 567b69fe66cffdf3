package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type execRequest struct {
	CommandLine string `json:"command_line" jsonschema:"required,description=the full command line string; this does not evaluate glob patterns itself -- the shell it runs through does"`
	TimeoutSec  int64  `json:"timeout_seconds" jsonschema:"description=maximum seconds to allow the command to run; 0 uses the runtime default"`
}

type execResponse struct {
	ExitCode int    `json:"exit_code" jsonschema:"description=the command's exit code; 0 means success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func execCommand(ctx context.Context, req execRequest) (execResponse, error) {
	rt, ok := runtime.From(ctx)
	if !ok {
		return execResponse{}, errors.New("no runtime attached to context")
	}
	var timeout int64
	if req.TimeoutSec > 0 {
		timeout = req.TimeoutSec * int64(1_000_000_000)
	}
	res, err := rt.Exec(ctx, req.CommandLine, runtime.ExecOptions{Cwd: rt.Cwd(), Timeout: timeout})
	if err != nil {
		return execResponse{}, tool.NewError(fmt.Errorf("exec_command: %w", err))
	}
	return execResponse{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

func ExecCommand() tool.Tool {
	return newTool("exec_command", "Execute a shell command in the agent's working directory.", execCommand)
}
