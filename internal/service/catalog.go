package service

import (
	"context"
	"errors"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/models"
	"github.com/punchamoorthee/creditledger/internal/store"
	"github.com/shopspring/decimal"
)

// CatalogService manages clients and products.
type CatalogService struct {
	store store.Store
}

func NewCatalogService(s store.Store) *CatalogService {
	return &CatalogService{store: s}
}

func (s *CatalogService) CreateClient(ctx context.Context, req models.CreateClientRequest) (*domain.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c := &domain.Client{
		Name:    req.Name,
		Level:   req.Level,
		Course:  req.Course,
		Contact: req.Contact,
		Credit:  orZero(req.Credit),
		Debit:   orZero(req.Debit),
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, storageErr("create client", err)
	}
	return c, nil
}

func (s *CatalogService) Client(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := s.store.Client(ctx, id)
	if err != nil {
		return nil, mapNotFound("load client", err, domain.ErrClientNotFound)
	}
	return c, nil
}

func (s *CatalogService) Clients(ctx context.Context) ([]domain.Client, error) {
	cs, err := s.store.Clients(ctx)
	if err != nil {
		return nil, storageErr("list clients", err)
	}
	return cs, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req models.ProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := &domain.Product{Name: req.Name, Description: req.Description, Price: req.Price, Stock: req.Stock}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, storageErr("create product", err)
	}
	return p, nil
}

func (s *CatalogService) Product(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.store.Product(ctx, id)
	if err != nil {
		return nil, mapNotFound("load product", err, domain.ErrProductNotFound)
	}
	return p, nil
}

func (s *CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	ps, err := s.store.Products(ctx)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	return ps, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req models.ProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := &domain.Product{ID: id, Name: req.Name, Description: req.Description, Price: req.Price, Stock: req.Stock}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, mapNotFound("update product", err, domain.ErrProductNotFound)
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrReferenced) {
		return domain.ErrProductInUse
	}
	if err != nil {
		return mapNotFound("delete product", err, domain.ErrProductNotFound)
	}
	return nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
