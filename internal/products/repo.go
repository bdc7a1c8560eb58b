package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/cache"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// Repository reads catalog products.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a product repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// CachedRepository reads through a best-effort cache. Cache errors are ignored
// and the underlying repository stays authoritative.
type CachedRepository struct {
	next  Repository
	store cache.Store
	ttl   time.Duration
}

// NewCachedRepository wraps next with a read-through cache.
func NewCachedRepository(next Repository, store cache.Store, ttl time.Duration) Repository {
	if store == nil || ttl <= 0 {
		return next
	}
	return &CachedRepository{next: next, store: store, ttl: ttl}
}

func (c *CachedRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key := CacheKey(id)
	var cached models.Product
	if ok, err := cache.GetJSON(ctx, c.store, key, &cached); err == nil && ok {
		return &cached, nil
	}
	product, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = cache.SetJSON(ctx, c.store, key, product, c.ttl)
	return product, nil
}

// CacheKey is the cache key holding one product.
func CacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}
