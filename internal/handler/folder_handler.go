package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
}

func NewFolderHandler(folderService *service.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

func folderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), ownerID, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, folder)
}

// GetRootContent lists the owner's top tree level.
func (h *FolderHandler) GetRootContent(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	content, err := h.folderService.GetContent(r.Context(), ownerID, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, content)
}

func (h *FolderHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	content, err := h.folderService.GetContent(r.Context(), ownerID, &folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, content)
}

func (h *FolderHandler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	var req struct {
		ParentID *int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.folderService.MoveFolder(r.Context(), ownerID, folderID, req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.folderService.Rename(r.Context(), ownerID, folderID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *FolderHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	starred, err := h.folderService.ToggleStar(r.Context(), ownerID, folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"is_starred": starred})
}

func (h *FolderHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	public, err := h.folderService.ToggleVisibility(r.Context(), ownerID, folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"is_public": public})
}
