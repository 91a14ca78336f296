package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// テスト用の部品
// =====================

type mapCache struct {
	mu     sync.Mutex
	items  map[string]string
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

type slowChecker struct {
	calls  atomic.Int32
	exists bool
	err    error
	delay  time.Duration
}

func (s *slowChecker) ProductExists(ctx context.Context, _ string) (bool, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return s.exists, s.err
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

// =====================
// ProductCatalog
// =====================

func TestProductCatalog_ProductExists(t *testing.T) {
	ctx := context.Background()
	products := new(ProductRepoMock)
	c := NewProductCatalog(products)

	products.On("FindByID", mock.Anything, "active").Return(model.Product{ID: "active", IsActive: true}, nil)
	products.On("FindByID", mock.Anything, "hidden").Return(model.Product{ID: "hidden"}, nil)
	products.On("FindByID", mock.Anything, "gone").Return(nil, repo.ErrNotFound)
	products.On("FindByID", mock.Anything, "broken").Return(nil, errors.New("db down"))

	ok, err := c.ProductExists(ctx, "active")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ProductExists(ctx, "hidden")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ProductExists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ProductExists(ctx, "broken")
	assert.Error(t, err)
}

// =====================
// CachedCatalog
// =====================

func TestCachedCatalog_CollapsesConcurrentMisses(t *testing.T) {
	next := &slowChecker{exists: true, delay: 50 * time.Millisecond}
	cache := newMapCache()
	c := NewCachedCatalog(next, cache, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.ProductExists(context.Background(), "sku-1")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, valueExists, cache.items[cacheKey("sku-1")])
}

func TestCachedCatalog_CachesMissingProduct(t *testing.T) {
	next := &slowChecker{exists: false}
	c := NewCachedCatalog(next, newMapCache(), time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := c.ProductExists(context.Background(), "sku-x")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedCatalog_CacheDownFallsThrough(t *testing.T) {
	next := &slowChecker{exists: true}
	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	c := NewCachedCatalog(next, cache, time.Minute)

	ok, err := c.ProductExists(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedCatalog_LookupErrorNotCached(t *testing.T) {
	next := &slowChecker{err: errors.New("db down")}
	cache := newMapCache()
	c := NewCachedCatalog(next, cache, time.Minute)

	_, err := c.ProductExists(context.Background(), "sku-1")
	assert.Error(t, err)
	assert.Empty(t, cache.items)
}
