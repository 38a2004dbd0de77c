package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type TrashHandler struct {
	trashService *service.TrashService
}

func NewTrashHandler(trashService *service.TrashService) *TrashHandler {
	return &TrashHandler{trashService: trashService}
}

func (h *TrashHandler) GetTrashItems(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.trashService.ListTrash(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, items)
}

type trashItemRequest struct {
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
}

// MoveToTrash soft-deletes a file or folder; folders cascade over
// their whole subtree.
func (h *TrashHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.ItemType {
	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(req.ItemID)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		rec, err := h.trashService.TrashFile(r.Context(), ownerID, fileUUID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, rec)

	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(req.ItemID, 10, 64)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		trashed, err := h.trashService.TrashFolder(r.Context(), ownerID, folderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]int{"trashed": trashed})

	default:
		http.Error(w, "Unknown item_type", http.StatusBadRequest)
	}
}

func (h *TrashHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.ItemType {
	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(req.ItemID)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		if err := h.trashService.RestoreFile(r.Context(), ownerID, fileUUID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(req.ItemID, 10, 64)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		restored, err := h.trashService.RestoreFolder(r.Context(), ownerID, folderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]int{"restored": restored})

	default:
		http.Error(w, "Unknown item_type", http.StatusBadRequest)
	}
}

// DeletePermanently purges one trashed item ahead of schedule.
func (h *TrashHandler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.ItemType {
	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(req.ItemID)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		if err := h.trashService.PurgeFile(r.Context(), ownerID, fileUUID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(req.ItemID, 10, 64)
		if err != nil {
			http.Error(w, "Invalid item_id", http.StatusBadRequest)
			return
		}
		result, err := h.trashService.PurgeFolder(r.Context(), ownerID, folderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)

	default:
		http.Error(w, "Unknown item_type", http.StatusBadRequest)
	}
}

func (h *TrashHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.trashService.EmptyTrash(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}
