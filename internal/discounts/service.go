package discounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/cache"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service prices products for a requested quantity.
type Service interface {
	ComputePrice(ctx context.Context, productID uuid.UUID, quantity int, selection Selection) (Result, error)
}

// ServiceParams wires pricing dependencies.
type ServiceParams struct {
	Products  productReader
	Discounts Repository
	Cache     cache.Store
	CacheTTL  time.Duration
	Now       func() time.Time
}

type service struct {
	products  productReader
	discounts Repository
	cache     cache.Store
	ttl       time.Duration
	now       func() time.Time
}

// NewService builds the pricing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	store := params.Cache
	if store == nil {
		store = cache.Noop{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		products:  params.Products,
		discounts: params.Discounts,
		cache:     store,
		ttl:       params.CacheTTL,
		now:       now,
	}, nil
}

func (s *service) ComputePrice(ctx context.Context, productID uuid.UUID, quantity int, selection Selection) (Result, error) {
	if productID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	configs, err := s.listDiscounts(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	return EffectivePrice(product.SellingPrice, quantity, configs, selection, s.now().UTC())
}

func (s *service) listDiscounts(ctx context.Context, productID uuid.UUID) ([]models.DiscountConfig, error) {
	key := CacheKey(productID)
	var cached []models.DiscountConfig
	if ok, err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil && ok {
		return cached, nil
	}
	configs, err := s.discounts.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discounts")
	}
	_ = cache.SetJSON(ctx, s.cache, key, configs, s.ttl)
	return configs, nil
}

// CacheKey is the cache key holding a product's discount rules.
func CacheKey(productID uuid.UUID) string {
	return "discounts:" + productID.String()
}
