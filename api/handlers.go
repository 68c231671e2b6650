package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/validator"
)

// FileType describes one accepted upload type.
type FileType struct {
	Extension string `json:"extension"`
	MimeType  string `json:"mimeType"`
	MaxBytes  int64  `json:"maxBytes"`
}

// DeleteResult acknowledges a delete.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fileTypes(w http.ResponseWriter, r *http.Request) {
	exts := validator.AllowedExtensions()
	slices.Sort(exts)
	types := make([]FileType, 0, len(exts))
	for _, ext := range exts {
		mime, _ := validator.MimeType(ext)
		types = append(types, FileType{Extension: ext, MimeType: mime, MaxBytes: s.maxUpload})
	}
	writeData(w, http.StatusOK, types)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: %w: request exceeds %d bytes", core.ErrValidation, validator.ErrTooLarge, s.maxUpload))
			return
		}
		writeError(w, fmt.Errorf("%w: missing file field: %w", core.ErrValidation, err))
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, fmt.Errorf("%w: no file selected", core.ErrValidation))
		return
	}

	artifact, err := s.service.Upload(r.Context(), owner, file, header.Filename)
	if err != nil {
		s.logger.Debug("upload rejected", "owner", owner, "filename", header.Filename, "err", err)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, artifact)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	artifacts, err := s.service.List(r.Context(), owner)
	if artifacts == nil {
		artifacts = []*core.Artifact{}
	}
	writeResult(w, http.StatusOK, core.Of(artifacts, err))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	writeResult(w, http.StatusOK, core.Of(s.ownedArtifact(r, owner)))
}

// ownedArtifact loads the {id} record and checks it belongs to owner.
func (s *Server) ownedArtifact(r *http.Request, owner string) (*core.Artifact, error) {
	id := chi.URLParam(r, "id")
	artifact, err := s.service.Status(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if artifact.Owner != owner {
		return nil, fmt.Errorf("%w: %s", core.ErrForbidden, id)
	}
	return artifact, nil
}

// download streams the original bytes under the uploaded filename.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	artifact, content, err := s.service.Download(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	defer content.Close()

	contentType := artifact.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if artifact.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.ByteSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		s.logger.Warn("download interrupted", "artifact", artifact.ID, "err", err)
	}
}

func (s *Server) reprocess(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	artifact, err := s.service.Reprocess(r.Context(), chi.URLParam(r, "id"), owner)
	writeResult(w, http.StatusAccepted, core.Of(artifact, err))
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.service.Delete(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, DeleteResult{ID: id, Deleted: true})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	k := DefaultSearchLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: k must be an integer", core.ErrValidation))
			return
		}
		k = min(n, MaxSearchLimit)
	}

	hits, err := s.service.Search(r.Context(), owner, query, k)
	if hits == nil {
		hits = []*core.SearchHit{}
	}
	writeResult(w, http.StatusOK, core.Of(hits, err))
}
