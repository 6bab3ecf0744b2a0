package product

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) List(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}
func (m *mockRepo) Get(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}
func (m *mockRepo) Put(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockRepo) Update(ctx context.Context, productID string, fields map[string]interface{}) error {
	return m.Called(ctx, productID, fields).Error(0)
}
func (m *mockRepo) HardDelete(ctx context.Context, productID string) error {
	return m.Called(ctx, productID).Error(0)
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, slog.Default())

	var stored *domain.Product
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Product) }).
		Return(nil)

	price := 149.90
	p, err := svc.Create(context.Background(), &domain.ProductInput{Name: "Workbench", Price: &price})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ProductID)
	assert.Equal(t, "Workbench", p.Name)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, stored, p)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, slog.Default())

	_, err := svc.Create(context.Background(), &domain.ProductInput{Name: ""})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	negative := -1.0
	_, err = svc.Create(context.Background(), &domain.ProductInput{Name: "x", Price: &negative})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestUpdate_UnknownProduct(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, slog.Default())

	repo.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	_, err := svc.Update(context.Background(), "missing", &domain.ProductInput{Name: "x"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_RemovesExistingProduct(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, slog.Default())

	repo.On("Get", mock.Anything, "p1").Return(&domain.Product{ProductID: "p1"}, nil)
	repo.On("HardDelete", mock.Anything, "p1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	repo.AssertExpectations(t)
}
