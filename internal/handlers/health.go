package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Backend     string `json:"backend"`
	Cache       string `json:"cache"`
	Storage     string `json:"storage,omitempty"`
	Environment string `json:"environment"`
}

// Health reports dependency reachability. The portal itself stays "ok" while
// it can serve pages; a down backend degrades it.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Backend: "ok", Cache: "disabled", Environment: h.cfg.Environment}

	if err := h.client.Ping(ctx); err != nil {
		resp.Backend = "error"
		resp.Status = "degraded"
		h.log.Warn().Err(err).Msg("backend ping failed")
	}

	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			resp.Cache = "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	if h.store != nil {
		resp.Storage = "ok"
		if err := h.store.Ping(ctx); err != nil {
			resp.Storage = "error"
			h.log.Error().Err(err).Msg("object store ping failed")
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
