package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/DeusData/executer-finder/internal/pipeline"
)

func (s *Server) indexRepository(ctx context.Context, args map[string]any) (any, error) {
	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		repoPath = s.cfg.Root
	}
	if repoPath == "" {
		return nil, errors.New("repo_path is required")
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	res, err := s.run(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	if s.OnIndexed != nil {
		s.OnIndexed(absPath)
	}
	return res, nil
}

// Reindex re-runs the analysis of root. Runs never overlap.
func (s *Server) Reindex(ctx context.Context, root string) error {
	_, err := s.run(ctx, root)
	return err
}

func (s *Server) run(ctx context.Context, root string) (*pipeline.Result, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return pipeline.New(s.cfg, s.backends).Run(ctx, root)
}
