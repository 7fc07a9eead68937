package dto

type AdjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type QuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type CountRequest struct {
	CountedQuantity int64  `json:"counted_quantity"`
	Notes           string `json:"notes"`
}

type ThresholdsRequest struct {
	LowStockThreshold *int64 `json:"low_stock_threshold"`
	ReorderPoint      *int64 `json:"reorder_point"`
	ReorderQuantity   *int64 `json:"reorder_quantity"`
}

type ListResponse struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
