package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type searchFilesRequest struct {
	PathPattern string `json:"path_pattern" jsonschema:"description=a glob pattern matched against paths relative to the working directory"`
	Grep        string `json:"grep" jsonschema:"description=a regular expression matched against file contents"`
}

type matchedFile struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

type searchFilesResponse struct {
	Files []matchedFile `json:"files"`
}

func searchFiles(ctx context.Context, req searchFilesRequest) (searchFilesResponse, error) {
	if req.PathPattern == "" && req.Grep == "" {
		return searchFilesResponse{}, tool.NewError(errors.New("either path_pattern or grep must be specified"))
	}
	rt, ok := runtime.From(ctx)
	if !ok {
		return searchFilesResponse{}, errors.New("no runtime attached to context")
	}
	root := rt.Cwd()

	var contentMatch *regexp.Regexp
	if req.Grep != "" {
		re, err := regexp.Compile(req.Grep)
		if err != nil {
			return searchFilesResponse{}, tool.NewError(fmt.Errorf("invalid grep pattern: %w", err))
		}
		contentMatch = re
	}

	resp := searchFilesResponse{}
	if req.PathPattern != "" {
		matches, err := filepath.Glob(filepath.Join(root, req.PathPattern))
		if err != nil {
			return searchFilesResponse{}, tool.NewError(fmt.Errorf("invalid path_pattern: %w", err))
		}
		for _, m := range matches {
			rel, err := filepath.Rel(root, m)
			if err != nil {
				continue
			}
			if contentMatch != nil && !matchesGrep(m, contentMatch) {
				continue
			}
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			resp.Files = append(resp.Files, matchedFile{Path: rel, IsDir: info.IsDir()})
		}
		return resp, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if matchesGrep(path, contentMatch) {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			resp.Files = append(resp.Files, matchedFile{Path: rel})
		}
		return nil
	})
	if err != nil {
		return searchFilesResponse{}, tool.NewError(fmt.Errorf("search_files: %w", err))
	}
	return resp, nil
}

func matchesGrep(path string, re *regexp.Regexp) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return re.Match(data)
}

func SearchFiles() tool.Tool {
	return newTool("search_files", "Find files by glob pattern and/or content regular expression.", searchFiles)
}
