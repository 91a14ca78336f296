package repository

import (
	"context"

	"stockledger/internal/domain/model"
)

// 商品カタログの参照だけを約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
}
