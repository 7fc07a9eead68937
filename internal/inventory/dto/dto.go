package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

type StockFilter string

const (
	StockAll           StockFilter = ""
	StockLow           StockFilter = "low_stock"
	StockOut           StockFilter = "out_of_stock"
	StockReorderNeeded StockFilter = "reorder"
)

type InventoryFilters struct {
	OwnerKind model.OwnerKind // empty matches products and variants
	Stock     StockFilter
	Page      int
	PageSize  int
}

func (f *InventoryFilters) Normalize() {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
}

type MovementFilters struct {
	Owner       *model.OwnerRef
	InventoryID string // resolved from Owner by the use case
	Reason      model.Reason
	StartDate   *time.Time
	EndDate     *time.Time
	Page        int
	PageSize    int
}

func (f *MovementFilters) Normalize() {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	// keeps (page-1)*pageSize far from overflow
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
