package web

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kumori-disk/kumori-disk/file"
)

// maxUploadBytes caps a single multipart upload held in memory before
// spilling to disk.
const maxUploadBytes = 32 << 20

const downloadLinkTTL = 15 * time.Minute

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid multipart body"})
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Missing file part"})
		return
	}
	defer part.Close()

	path := r.FormValue("path")
	if path == "" {
		path = "root"
	}

	created, err := s.files.Upload(r.Context(), file.Upload{
		OwnerID:     UserID(r.Context()),
		Path:        path,
		Name:        header.Filename,
		SizeInBytes: header.Size,
		Body:        part,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := s.files.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		s.logger.WarnContext(r.Context(), "download interrupted", "file_id", id, "error", err)
	}
}

func (s *Server) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	url, err := s.files.DownloadLink(r.Context(), id, downloadLinkTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type renameFileRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req renameFileRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	renamed, err := s.files.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renamed)
}

type shareAccessRequest struct {
	FileIDs []string `json:"file_ids"`
	UserID  string   `json:"user_id"`
}

func (s *Server) handleShareAccess(w http.ResponseWriter, r *http.Request) {
	var req shareAccessRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FileIDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	if err := s.files.ShareAccess(r.Context(), req.FileIDs, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"shared": true})
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	var req shareAccessRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FileIDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	if err := s.files.RevokeAccess(r.Context(), req.FileIDs, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.files.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	plan, err := s.plans.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plan == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Plan not found"})
		return
	}

	orderID, err := s.paypal.CreateOrder(r.Context(), plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"order_id": orderID})
}
