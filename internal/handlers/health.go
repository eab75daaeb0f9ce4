package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.store.Ping(pingCtx); err != nil {
		log.Error().Err(err).Msg("health check: database unreachable")
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"message":   "CampusConnect is running",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
