package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/service"
)

const maxUploadMemory = 32 << 20 // 32MB held in memory, rest spills to disk

type FileHandler struct {
	fileService *service.FileService
}

func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

func fileUUIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "uuid"))
}

// UploadFile accepts a multipart form with a "file" part and an
// optional "folder_id" field.
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer part.Close()

	var folderID *int64
	if raw := r.FormValue("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid folder_id", http.StatusBadRequest)
			return
		}
		folderID = &id
	}

	data, err := io.ReadAll(part)
	if err != nil {
		log.Printf("Failed to read upload: %v", err)
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.Upload(r.Context(), ownerID, folderID, header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, file)
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.Get(r.Context(), ownerID, fileUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, file)
}

// DownloadFile responds with a short-lived presigned URL instead of
// proxying the blob.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	url, err := h.fileService.PresignDownload(r.Context(), ownerID, fileUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"url": url})
}

func (h *FileHandler) MoveFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	var req struct {
		FolderID *int64 `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fileService.MoveFile(r.Context(), ownerID, fileUUID, req.FolderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *FileHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fileService.Rename(r.Context(), ownerID, fileUUID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteFile removes the file permanently, bypassing trash.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	if err := h.fileService.DeleteFileHard(r.Context(), ownerID, fileUUID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *FileHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	starred, err := h.fileService.ToggleStar(r.Context(), ownerID, fileUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"is_starred": starred})
}

func (h *FileHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	fileUUID, err := fileUUIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file uuid", http.StatusBadRequest)
		return
	}

	public, err := h.fileService.ToggleVisibility(r.Context(), ownerID, fileUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"is_public": public})
}

func (h *FileHandler) ListStarred(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.OwnerID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := h.fileService.ListStarred(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, files)
}
