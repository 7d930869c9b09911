package library

import (
	"context"

	"github.com/google/uuid"
)

type Category struct {
	ID   uuid.UUID
	Name string
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}
