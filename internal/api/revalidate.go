package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/cache"
)

type revalidateRequest struct {
	Secret string `json:"secret"`
	Tag    string `json:"tag"`
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Tag         string `json:"tag"`
	Now         int64  `json:"now"`
	Duration    int64  `json:"duration"`
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (s *server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost, messageBody{Message: "Method not allowed"})
		return
	}

	var req revalidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		zap.L().Warn("api: decode revalidate request", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: "Error revalidating", Error: err.Error()})
		return
	}
	if s.cfg.RevalidateSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.RevalidateSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, messageBody{Message: "Invalid secret"})
		return
	}
	if req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "Missing tag"})
		return
	}

	start := s.now()
	if s.deps.Cache != nil {
		tags := []string{req.Tag}
		if req.Tag != cache.RootTag {
			tags = append(tags, cache.RootTag)
		}
		for _, tag := range tags {
			if err := s.deps.Cache.InvalidateTag(r.Context(), tag); err != nil {
				zap.L().Error("api: revalidate", zap.String("tag", tag), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, messageBody{Message: "Error revalidating", Error: err.Error()})
				return
			}
		}
	}
	end := s.now()

	zap.L().Info("api: revalidated", zap.String("tag", req.Tag))
	writeJSON(w, http.StatusOK, revalidateResponse{
		Revalidated: true,
		Tag:         req.Tag,
		Now:         end.UnixMilli(),
		Duration:    end.Sub(start).Milliseconds(),
	})
}
