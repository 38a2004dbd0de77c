package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
}

func NewShareHandler(shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ResourceType  string `json:"resource_type"`
		ResourceID    string `json:"resource_id"`
		ExpiresInDays *int   `json:"expires_in_days"`
		Password      string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.shareService.CreateShareLink(r.Context(), ownerID, req.ResourceType, req.ResourceID, req.ExpiresInDays, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, link)
}

func (h *ShareHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	links, err := h.shareService.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, links)
}

// ResolveShare is the anonymous entry point: token in, resource out.
func (h *ShareHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resolved, err := h.shareService.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resolved)
}

func (h *ShareHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sessionID := auth.EnsureSession(w, r)

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.shareService.VerifyPassword(r.Context(), token, req.Password, sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// FolderFiles lists every file reachable through a folder share.
func (h *ShareHandler) FolderFiles(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sessionID := auth.EnsureSession(w, r)

	files, err := h.shareService.ListFolderFiles(r.Context(), token, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, files)
}

func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sessionID := auth.EnsureSession(w, r)

	url, err := h.shareService.PresignSharedDownload(r.Context(), token, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"url": url})
}

func (h *ShareHandler) DeactivateShare(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token := chi.URLParam(r, "token")

	if err := h.shareService.Deactivate(r.Context(), ownerID, token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
