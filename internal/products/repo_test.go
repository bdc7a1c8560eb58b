package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/cache"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

func TestRepositoryFindByID(t *testing.T) {
	conn := dbtest.Open(t, "products")
	product := models.Product{
		ID:           uuid.New(),
		Name:         "Basmati Rice",
		UnitLabel:    "kg",
		UnitSize:     decimal.NewFromInt(5),
		MRP:          decimal.NewFromInt(120),
		SellingPrice: decimal.NewFromInt(100),
		MinOrderQty:  1,
		IsActive:     true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	repo := NewRepository(conn)
	got, err := repo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != "Basmati Rice" || !got.SellingPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected product %+v", got)
	}

	if _, err := repo.FindByID(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingRepo struct {
	calls   int
	product *models.Product
	err     error
}

func (c *countingRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.product, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}
func (brokenStore) Del(context.Context, ...string) error { return errors.New("redis down") }

func TestCachedRepositoryReadsThrough(t *testing.T) {
	id := uuid.New()
	inner := &countingRepo{product: &models.Product{ID: id, Name: "Atta", SellingPrice: decimal.NewFromInt(40)}}
	repo := NewCachedRepository(inner, cache.NewMemory(), time.Minute)

	for i := 0; i < 3; i++ {
		got, err := repo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("FindByID #%d: %v", i+1, err)
		}
		if got.Name != "Atta" {
			t.Fatalf("unexpected product %q", got.Name)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one backing read, got %d", inner.calls)
	}
}

func TestCachedRepositoryDegradesWhenCacheFails(t *testing.T) {
	id := uuid.New()
	inner := &countingRepo{product: &models.Product{ID: id, Name: "Dal"}}
	repo := NewCachedRepository(inner, brokenStore{}, time.Minute)

	for i := 0; i < 2; i++ {
		got, err := repo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("FindByID #%d: %v", i+1, err)
		}
		if got.Name != "Dal" {
			t.Fatalf("unexpected product %q", got.Name)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("expected every read to hit the repository, got %d", inner.calls)
	}
}

func TestCachedRepositoryDoesNotCacheErrors(t *testing.T) {
	inner := &countingRepo{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	repo := NewCachedRepository(inner, cache.NewMemory(), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.FindByID(context.Background(), uuid.New()); err == nil {
			t.Fatalf("FindByID #%d: expected error", i+1)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("errors should not be cached, got %d reads", inner.calls)
	}
}
