package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/matching"
)

const (
	maxPhotoBytes  = 5 << 20
	photoMaxSide   = 800
	photoQuality   = 85
	photoFormField = "file"
)

// POST /me/photo  (multipart form, field name: "file")
// JPEG or PNG, stored as a JPEG that fits in 800x800.
func uploadPhotoHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := currentUserID(r)

		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+(1<<20))
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large_or_missing")
			return
		}
		f, _, err := r.FormFile(photoFormField)
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file")
			return
		}
		defer f.Close()

		// Sniff MIME from the first bytes
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		ctype := http.DetectContentType(head[:n])
		if ctype != "image/jpeg" && ctype != "image/png" {
			writeError(w, http.StatusBadRequest, "only_jpeg_or_png_allowed")
			return
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "seek_failed")
			return
		}

		img, err := imaging.Decode(f, imaging.AutoOrientation(true))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_image")
			return
		}
		img = imaging.Fit(img, photoMaxSide, photoMaxSide, imaging.Lanczos)

		filename := fmt.Sprintf("%d.jpg", me)
		if err := savePhoto(s.cfg.PhotoDir, filename, func(w io.Writer) error {
			return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(photoQuality))
		}); err != nil {
			logger.Error("save photo", zap.Int("user_id", me), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save_failed")
			return
		}

		var updated bool
		if err := s.storeCall(r.Context(), "set photo", func(ctx context.Context) (err error) {
			updated, err = s.store.SetPhoto(ctx, me, filename)
			return err
		}); err != nil {
			// If the store fails, leave the file but report the error.
			writeStoreError(w, "upload photo", err)
			return
		}
		if !updated {
			// The profile row has not been initialized yet.
			_ = os.Remove(filepath.Join(s.cfg.PhotoDir, filename))
			writeError(w, http.StatusConflict, "profile_not_initialized")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"photo_url": matching.Profile{UserID: me, PhotoFile: filename}.PhotoURL(),
		})
	}
}

// savePhoto writes through a temp file so readers never see a partial image.
func savePhoto(dir, filename string, encode func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, filename)
	tmp := dst + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := encode(out); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// DELETE /me/photo
func deletePhotoHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := currentUserID(r)

		var p *matching.Profile
		if err := s.storeCall(r.Context(), "fetch profile", func(ctx context.Context) (err error) {
			p, err = s.store.ProfileByUserID(ctx, me)
			return err
		}); err != nil {
			writeStoreError(w, "delete photo", err)
			return
		}
		if p == nil || p.PhotoFile == "" {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		// Only the basename, to avoid ../ in stored names
		fullPath := filepath.Join(s.cfg.PhotoDir, filepath.Base(p.PhotoFile))
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			logger.Error("remove photo", zap.String("path", fullPath), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "remove_failed")
			return
		}
		if err := s.storeCall(r.Context(), "clear photo", func(ctx context.Context) error {
			_, err := s.store.SetPhoto(ctx, me, "")
			return err
		}); err != nil {
			writeStoreError(w, "delete photo", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// GET /photos/{userId}
// Only the owner or a member sharing a match may see the photo.
func getPhotoHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := currentUserID(r)
		targetID, err := strconv.Atoi(chi.URLParam(r, "userId"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		allowed, err := s.canView(r.Context(), me, targetID)
		if err != nil {
			writeStoreError(w, "get photo", err)
			return
		}
		if !allowed {
			// 404 so that the file existence is not revealed
			http.NotFound(w, r)
			return
		}

		var p *matching.Profile
		if err := s.storeCall(r.Context(), "fetch profile", func(ctx context.Context) (err error) {
			p, err = s.store.ProfileByUserID(ctx, targetID)
			return err
		}); err != nil {
			writeStoreError(w, "get photo", err)
			return
		}
		if p == nil || p.PhotoFile == "" {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(s.cfg.PhotoDir, filepath.Base(p.PhotoFile))
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		// Light cache - busted in frontend ?ts=timestamp
		w.Header().Set("Cache-Control", "private, max-age=3600")
		http.ServeFile(w, r, path)
	}
}
