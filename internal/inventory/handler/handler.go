package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	router.HandleFunc("/inventory/low-stock", h.ListLowStock).Methods(http.MethodGet)
	router.HandleFunc("/inventory/out-of-stock", h.ListOutOfStock).Methods(http.MethodGet)
	router.HandleFunc("/inventory/reorder", h.ListReorderNeeded).Methods(http.MethodGet)

	router.HandleFunc("/inventory/{kind}/{id}", h.GetInventory).Methods(http.MethodGet)
	router.HandleFunc("/inventory/{kind}/{id}/resolve", h.ResolveOrCreate).Methods(http.MethodPost)
	router.HandleFunc("/inventory/{kind}/{id}/adjust", h.AdjustQuantity).Methods(http.MethodPost)
	router.HandleFunc("/inventory/{kind}/{id}/reserve", h.Reserve).Methods(http.MethodPost)
	router.HandleFunc("/inventory/{kind}/{id}/release", h.Release).Methods(http.MethodPost)
	router.HandleFunc("/inventory/{kind}/{id}/count", h.PhysicalCount).Methods(http.MethodPost)
	router.HandleFunc("/inventory/{kind}/{id}/thresholds", h.UpdateThresholds).Methods(http.MethodPut)
	router.HandleFunc("/inventory/{kind}/{id}/movements", h.ListMovements).Methods(http.MethodGet)
	router.HandleFunc("/inventory/{kind}/{id}/reconcile", h.Reconcile).Methods(http.MethodGet)
}

func (h *InventoryHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *InventoryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	rec, err := h.uc.GetInventory(r.Context(), owner)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *InventoryHandler) ResolveOrCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	rec, err := h.uc.ResolveOrCreate(r.Context(), owner)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *InventoryHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req dto.AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	rec, err := h.uc.AdjustQuantity(r.Context(), &dto.AdjustQuantityInput{
		Owner:   owner,
		Delta:   req.Delta,
		Reason:  model.Reason(req.Reason),
		Notes:   req.Notes,
		ActorID: auth.GetActorID(r.Context()),
	})
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.uc.Reserve)
}

func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.uc.Release)
}

func (h *InventoryHandler) PhysicalCount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req dto.CountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	rec, err := h.uc.PhysicalCount(r.Context(), &dto.PhysicalCountInput{
		Owner:           owner,
		CountedQuantity: req.CountedQuantity,
		Notes:           req.Notes,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *InventoryHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req dto.ThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	rec, err := h.uc.UpdateThresholds(r.Context(), &dto.UpdateThresholdsInput{
		Owner:             owner,
		LowStockThreshold: req.LowStockThreshold,
		ReorderPoint:      req.ReorderPoint,
		ReorderQuantity:   req.ReorderQuantity,
	})
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	filters := &dto.MovementFilters{
		Owner:  &owner,
		Reason: model.Reason(q.Get("reason")),
	}
	var err error
	if filters.Page, filters.PageSize, err = pageParams(r); err == nil {
		if filters.StartDate, err = timeParam(r, "start_date"); err == nil {
			filters.EndDate, err = timeParam(r, "end_date")
		}
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.uc.ListMovements(r.Context(), filters)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	filters.Normalize()
	respondWithJSON(w, http.StatusOK, dto.ListResponse{
		Items:    items,
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	})
}

func (h *InventoryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	result, err := h.uc.Reconcile(r.Context(), owner)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *InventoryHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.uc.ListLowStock)
}

func (h *InventoryHandler) ListOutOfStock(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.uc.ListOutOfStock)
}

func (h *InventoryHandler) ListReorderNeeded(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.uc.ListReorderNeeded)
}

type reservationFunc func(ctx context.Context, owner model.OwnerRef, qty int64) (*model.InventoryRecord, error)

func (h *InventoryHandler) reservation(w http.ResponseWriter, r *http.Request, apply reservationFunc) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req dto.QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	rec, err := apply(r.Context(), owner, req.Quantity)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, mapRecord(rec))
}

type listFunc func(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error)

func (h *InventoryHandler) listRecords(w http.ResponseWriter, r *http.Request, list listFunc) {
	filters := &dto.InventoryFilters{OwnerKind: model.OwnerKind(r.URL.Query().Get("owner_kind"))}
	var err error
	if filters.Page, filters.PageSize, err = pageParams(r); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := list(r.Context(), filters)
	if err != nil {
		h.respondWithLedgerError(w, err)
		return
	}

	resp := make([]inventoryResponse, len(items))
	for i := range items {
		resp[i] = mapRecord(&items[i])
	}
	filters.Normalize()
	respondWithJSON(w, http.StatusOK, dto.ListResponse{
		Items:    resp,
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	})
}

func (h *InventoryHandler) owner(w http.ResponseWriter, r *http.Request) (model.OwnerRef, bool) {
	vars := mux.Vars(r)
	owner, err := model.NewOwnerRef(vars["kind"], vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return model.OwnerRef{}, false
	}
	return owner, true
}

// respondWithLedgerError maps the ledger taxonomy onto HTTP statuses.
func (h *InventoryHandler) respondWithLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrInvalidOwner),
		errors.Is(err, inventory.ErrInvalidReason),
		errors.Is(err, inventory.ErrInvalidQuantity):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidRelease):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("inventory request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type inventoryResponse struct {
	*model.InventoryRecord
	AvailableQuantity int64             `json:"available_quantity"`
	Status            model.StockStatus `json:"status"`
	ReorderNeeded     bool              `json:"reorder_needed"`
}

func mapRecord(rec *model.InventoryRecord) inventoryResponse {
	return inventoryResponse{
		InventoryRecord:   rec,
		AvailableQuantity: rec.AvailableQuantity(),
		Status:            rec.Status(),
		ReorderNeeded:     rec.Reorder().Needed,
	}
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "page")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := intParam(r, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", errBadRequest, name)
	}
	return &t, nil
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
