package allocator

import (
	"context"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// Allocator hands out redemption codes. Allocation is delegated to the
// store's status-guarded update, so two concurrent allocations of the
// last code for a product yield exactly one winner; this component adds
// the combo expansion and the FIFO contract on top.
type Allocator struct {
	catalog repository.CatalogRepository
	logger  *zap.Logger

	// Optional metric hook fired once per redeemed code (nil = no-op).
	OnAllocated func(productID string)
}

func New(catalog repository.CatalogRepository, logger *zap.Logger) *Allocator {
	return &Allocator{catalog: catalog, logger: logger}
}

// AllocateOne consumes the oldest active code for the product.
// Returns domain.ErrNoActiveCode when the pool is empty; nothing is
// mutated in that case.
func (a *Allocator) AllocateOne(ctx context.Context, productID string) (*domain.RedemptionCode, error) {
	code, err := a.catalog.AllocateCode(ctx, productID)
	if err != nil {
		return nil, err
	}
	if a.OnAllocated != nil {
		a.OnAllocated(productID)
	}
	a.logger.Info("redemption code allocated",
		zap.String("product_id", productID), zap.String("code_id", code.ID))
	return code, nil
}

// AllocateCombo consumes one code per constituent product, all or
// nothing: if any product has no active code the whole allocation
// aborts and no code stays redeemed.
func (a *Allocator) AllocateCombo(ctx context.Context, comboID string) ([]*domain.RedemptionCode, error) {
	combo, err := a.catalog.GetCombo(ctx, comboID)
	if err != nil {
		return nil, err
	}

	codes, err := a.catalog.AllocateCodes(ctx, combo.ProductIDs)
	if err != nil {
		return nil, err
	}

	if a.OnAllocated != nil {
		for _, c := range codes {
			a.OnAllocated(c.ProductID)
		}
	}
	a.logger.Info("combo codes allocated",
		zap.String("combo_id", comboID), zap.Int("count", len(codes)))
	return codes, nil
}

// AllocateFor dispatches on the sale's item kind.
func (a *Allocator) AllocateFor(ctx context.Context, kind domain.ItemKind, itemID string) ([]*domain.RedemptionCode, error) {
	if kind == domain.ItemCombo {
		return a.AllocateCombo(ctx, itemID)
	}
	code, err := a.AllocateOne(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return []*domain.RedemptionCode{code}, nil
}
