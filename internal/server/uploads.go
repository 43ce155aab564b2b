package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// UploadResponse acknowledges an accepted upload batch.
type UploadResponse struct {
	Files   []upload.FileMeta `json:"files"`
	Uploads upload.Artifacts  `json:"uploads"`
}

// SelectFileRequest points the selection at a file. -1 clears it.
type SelectFileRequest struct {
	Index *int `json:"index" validate:"required,min=-1"`
}

// handleUpload accepts a multipart batch (field "files"), archives the raw
// files and extracts them in the background one at a time. Progress is
// reported over the event stream.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *session) {
	if s.extractor == nil {
		s.failure(w, r, &ErrServiceUnavailable{Service: "extraction"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.failure(w, r, &ErrValidation{Field: "files", Message: err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.failure(w, r, &ErrValidation{Field: "files", Message: "at least one file is required"})
		return
	}

	files := make([]extraction.File, 0, len(headers))
	metas := make([]upload.FileMeta, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			s.failure(w, r, &ErrValidation{Field: "files", Message: err.Error()})
			return
		}
		files = append(files, f)
		metas = append(metas, upload.FileMeta{Name: f.Name, Size: int64(len(f.Data)), MimeType: f.MimeType})
	}

	added, err := sess.ctrl.AddFiles(metas...)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.archive(r.Context(), sess, added, files)

	started := sess.spawn(func(ctx context.Context) {
		sess.batchMu.Lock()
		defer sess.batchMu.Unlock()
		if err := sess.ctrl.ExtractFiles(ctx, s.extractor, added, files); err != nil {
			s.logger.Info("upload batch stopped",
				zap.String("session_id", sess.id),
				zap.Int("files", len(files)),
				zap.Error(err))
		}
	})
	if !started {
		s.failure(w, r, &ErrSessionNotFound{SessionID: sess.id})
		return
	}

	s.jsonResponse(w, http.StatusAccepted, UploadResponse{Files: added, Uploads: sess.ctrl.State().Uploads})
}

// archive stores raw files under the browser namespace. Archive failures do
// not stop extraction.
func (s *Server) archive(ctx context.Context, sess *session, metas []upload.FileMeta, files []extraction.File) {
	for i, meta := range metas {
		if err := s.blobs.Put(ctx, sess.browserID, meta.ID.String(), meta.MimeType, files[i].Data); err != nil {
			s.logger.Warn("failed to archive upload",
				zap.String("session_id", sess.id),
				zap.String("file", meta.Name),
				zap.Error(err))
		}
	}
}

func (s *Server) handleRemoveUpload(w http.ResponseWriter, r *http.Request, sess *session) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.failure(w, r, &ErrValidation{Field: "index", Message: "must be an integer"})
		return
	}

	removed, err := sess.ctrl.RemoveFile(index)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if err := s.blobs.Delete(r.Context(), sess.browserID, removed.ID.String()); err != nil {
		s.logger.Warn("failed to delete archived upload", zap.String("file", removed.Name), zap.Error(err))
	}
	s.stateResponse(w, http.StatusOK, sess)
}

func (s *Server) handleSelectUpload(w http.ResponseWriter, r *http.Request, sess *session) {
	var req SelectFileRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	if err := sess.ctrl.SelectFile(*req.Index); err != nil {
		s.failure(w, r, err)
		return
	}
	s.stateResponse(w, http.StatusOK, sess)
}

func readPart(fh *multipart.FileHeader) (extraction.File, error) {
	f, err := fh.Open()
	if err != nil {
		return extraction.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return extraction.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return extraction.File{Name: fh.Filename, MimeType: mimeType, Data: data}, nil
}
