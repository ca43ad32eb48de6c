package service

import (
	"context"

	"github.com/mmeshcher/market-system/internal/model"
)

// CreateProduct добавляет товар в каталог (административная операция).
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, p.ID)
}

// GetProduct возвращает товар каталога по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}
