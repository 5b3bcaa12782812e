package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

const healthCheckTimeout = 2 * time.Second

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// NewHealthHandler は生存確認と永続化ストレージの到達性確認を行うハンドラーを返す。
// ストレージに到達できない場合も生存していれば200を返し、storageを"unavailable"とする。
// GET /health
func NewHealthHandler(checker repository.Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Storage: "ok"}
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				slog.Warn("storage health check failed", slog.String("error", err.Error()))
				resp.Storage = "unavailable"
			}
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	})
}
