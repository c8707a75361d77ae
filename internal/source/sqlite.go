package source

import (
	"context"
	"fmt"

	"soilnet-ml/internal/repository"
	"soilnet-ml/internal/types"
)

type SQLiteSource struct {
	repo repository.ReadingRepository
	path string
}

func NewSQLite(repo repository.ReadingRepository, path string) *SQLiteSource {
	return &SQLiteSource{repo: repo, path: path}
}

func (s *SQLiteSource) Describe() string { return "sqlite:" + s.path }

func (s *SQLiteSource) Load(ctx context.Context) (types.Table, error) {
	table, err := s.repo.ListReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return table, nil
}
