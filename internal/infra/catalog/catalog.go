package catalog

import (
	"context"
	"errors"

	repo "stockledger/internal/repository"
)

// 商品マスタで存在確認する
type ProductCatalog struct {
	products repo.ProductRepository
}

func NewProductCatalog(products repo.ProductRepository) *ProductCatalog {
	return &ProductCatalog{products: products}
}

// 見つからない / 非公開ならfalse
func (c *ProductCatalog) ProductExists(ctx context.Context, productID string) (bool, error) {
	p, err := c.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsActive, nil
}
