package server

import (
	"errors"
	"fmt"
	"math"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"filehost/internal/filehost"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type uploadResponse struct {
	Message string                 `json:"message"`
	Files   []*filehost.FileRecord `json:"files"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Room for every allowed file plus the multipart framing.
	maxBody := int64(s.limits.MaxFiles)*s.limits.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(w, r, fmt.Errorf("%w: request exceeds %d bytes", filehost.ErrPayloadTooLarge, maxBody))
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			s.writeError(w, r, filehost.ErrNoFiles)
		default:
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["files[]"]...)
	files := make([]filehost.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("opening upload part: %w", err))
			return
		}
		defer f.Close()
		files = append(files, filehost.UploadFile{Name: fh.Filename, Size: fh.Size, Content: f})
	}

	records, err := s.service.Upload(r.Context(), filehost.UploadRequest{
		Directory: formValue(r.MultipartForm, "dir"),
		Secret:    credential(r, formValue(r.MultipartForm, "password")),
		Files:     files,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var total int64
	for _, rec := range records {
		total += rec.Size
	}
	s.metrics.ObserveUpload(len(records), total)

	writeJSON(w, http.StatusOK, uploadResponse{Message: "Upload successful", Files: records})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.service.ListFiles(r.Context(), q.Get("dir"), q.Get("search"), credential(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type renameRequest struct {
	NewName  string `json:"newName"`
	Password string `json:"password"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.service.Rename(r.Context(), mux.Vars(r)["id"], req.NewName, credential(r, req.Password)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "File renamed"})
}

type moveRequest struct {
	NewDir   *string `json:"newDir"`
	Password string  `json:"password"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.NewDir == nil {
		s.writeError(w, r, fmt.Errorf("%w: newDir", filehost.ErrMissingField))
		return
	}

	if _, err := s.service.Move(r.Context(), mux.Vars(r)["id"], *req.NewDir, credential(r, req.Password)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "File moved"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, f, err := s.service.Open(r.Context(), mux.Vars(r)["id"], credential(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(rec.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.OriginalName}))
	http.ServeContent(w, r, rec.OriginalName, rec.UploadedAt, f)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.service.Delete(r.Context(), mux.Vars(r)["id"], credential(r, req.Password)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "File deleted"})
}

type createDirectoryRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type directoryResponse struct {
	Message   string `json:"message"`
	Directory string `json:"directory"`
}

// handleCreateDirectory protects the new directory with the body password.
// The same body password is the last-resort credential for the parent.
func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req createDirectoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	dir, err := s.service.CreateDirectory(r.Context(), req.Name, req.Password, credential(r, req.Password))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, directoryResponse{Message: "Directory created", Directory: dir})
}

func (s *Server) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.service.DeleteDirectory(r.Context(), mux.Vars(r)["name"], credential(r, req.Password)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Directory deleted"})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListDirectories(r.Context(), r.URL.Query().Get("dir"), credential(r, ""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

type diskSpace struct {
	Used      string `json:"used"`
	Available string `json:"available"`
}

type statsResponse struct {
	TotalFiles int64     `json:"totalFiles"`
	TotalSize  string    `json:"totalSize"`
	TotalBytes int64     `json:"totalBytes"`
	DiskSpace  diskSpace `json:"diskSpace"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalFiles: stats.TotalFiles,
		TotalSize:  formatBytes(uint64(stats.TotalSize)),
		TotalBytes: stats.TotalSize,
		DiskSpace: diskSpace{
			Used:      formatBytes(stats.DiskUsed),
			Available: formatBytes(stats.DiskAvailable),
		},
	})
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// formatBytes renders n in 1024-based units with at most two decimals,
// e.g. "1.5 KB" or "2.01 KB".
func formatBytes(n uint64) string {
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return humanize.Ftoa(math.Round(v*100)/100) + " " + byteUnits[unit]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// formValue returns the first value of a multipart form field.
func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
