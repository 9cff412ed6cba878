package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chat-hub/internal/types"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const maxUploadSize = 10 << 20 // 10MB

var allowedExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
	".mp3": true, ".mp4": true,
}

var allowedMimes = []string{
	"image/jpeg", "image/png", "image/gif",
	"application/pdf", "application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/zip", // docx containers sniff as zip
	"text/plain", "audio/mpeg", "video/mp4",
}

// UploadHandler stores a file attachment and returns the reference payload
// the client embeds in a kind=file message. The extension whitelist matches
// the declared name; the content sniff catches files lying about it.
func UploadHandler(uploadDir string, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "File too large (10MB max)", http.StatusRequestEntityTooLarge)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			http.Error(w, "Invalid file type", http.StatusBadRequest)
			return
		}

		mtype, err := mimetype.DetectReader(file)
		if err != nil {
			log.Errorw("mime detection failed", "filename", header.Filename, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !mimetype.EqualsAny(mtype.String(), allowedMimes...) {
			log.Warnw("upload content mismatch", "filename", header.Filename, "detected", mtype.String())
			http.Error(w, "Invalid file type", http.StatusBadRequest)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			log.Errorw("upload dir creation failed", "dir", uploadDir, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		stored := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
		dst, err := os.Create(filepath.Join(uploadDir, stored))
		if err != nil {
			log.Errorw("upload create failed", "file", stored, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer dst.Close()

		size, err := io.Copy(dst, file)
		if err != nil {
			log.Errorw("upload write failed", "file", stored, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.Infow("file uploaded", "file", stored, "size", size)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.UploadResponse{
			FileURL:  "/uploads/" + stored,
			Filename: header.Filename,
			Size:     size,
		})
	}
}
