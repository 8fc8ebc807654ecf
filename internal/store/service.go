package store

import (
	"context"
	"strings"
)

const stockSearchLimit = 20

type Service interface {
	GetBySlug(ctx context.Context, slug string) (*Store, error)
	GetByID(ctx context.Context, id int64) (*Store, error)
	SearchStock(ctx context.Context, slug, query string) ([]StockItem, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*Store, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrInvalidStoreRef
	}
	return s.repo.GetBySlug(ctx, slug)
}

func (s *service) GetByID(ctx context.Context, id int64) (*Store, error) {
	if id <= 0 {
		return nil, ErrInvalidStoreRef
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) SearchStock(ctx context.Context, slug, query string) ([]StockItem, error) {
	st, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchStock(ctx, st.ID, query, stockSearchLimit)
}
