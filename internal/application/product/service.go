package product

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/pkg/id"
	"github.com/emmegi/catalog-api/internal/pkg/validate"
)

type Repo interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Put(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, productID string, fields map[string]interface{}) error
	HardDelete(ctx context.Context, productID string) error
}

// Service manages the product catalog. Reads are public, writes are
// restricted to admins at the transport layer.
type Service struct {
	products Repo
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(products Repo, logger *slog.Logger) *Service {
	return &Service{products: products, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

func (s *Service) Get(ctx context.Context, productID string) (*domain.Product, error) {
	return s.products.Get(ctx, productID)
}

func (s *Service) Create(ctx context.Context, input *domain.ProductInput) (*domain.Product, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid product: %w", domain.ErrBadRequest)
	}
	now := s.now()
	p := &domain.Product{
		ProductID:   id.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		PhotoURL:    input.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("store product: %w", err)
	}
	s.logger.Info("product created", "product_id", p.ProductID, "name", p.Name)
	return p, nil
}

func (s *Service) Update(ctx context.Context, productID string, input *domain.ProductInput) (*domain.Product, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid product: %w", domain.ErrBadRequest)
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"name": input.Name,
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Price != nil {
		fields["price"] = *input.Price
	}
	if input.PhotoURL != nil {
		fields["photo_url"] = *input.PhotoURL
	}
	if err := s.products.Update(ctx, productID, fields); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.products.Get(ctx, productID)
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return err
	}
	if err := s.products.HardDelete(ctx, productID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.Info("product deleted", "product_id", productID)
	return nil
}
