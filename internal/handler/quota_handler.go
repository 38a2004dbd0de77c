package handler

import (
	"encoding/json"
	"net/http"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

func (h *QuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

// Recompute reconciles used_storage from the file rows. Explicit
// endpoint only; reads never trigger it.
func (h *QuotaHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	used, err := h.quotaService.RecomputeUsedStorage(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int64{"used_storage": used})
}

func (h *QuotaHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.quotaService.ListPlans(r.Context(), r.URL.Query().Get("all") == "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, plans)
}

// Plan administration; the gateway restricts these routes to admins.
func (h *QuotaHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string  `json:"name"`
		MaxStorageSize int64   `json:"max_storage_size"`
		MaxFileSize    int64   `json:"max_file_size"`
		Price          float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan := &domain.StoragePlan{
		Name:           req.Name,
		MaxStorageSize: req.MaxStorageSize,
		MaxFileSize:    req.MaxFileSize,
		Price:          req.Price,
		IsActive:       true,
	}
	if err := h.quotaService.CreatePlan(r.Context(), plan); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, plan)
}

func (h *QuotaHandler) AssignPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
		PlanID  int64  `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.AssignPlan(r.Context(), req.OwnerID, req.PlanID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
