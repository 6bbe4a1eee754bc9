package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hwmonitor/bridge/internal/config"
)

type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type pingResponse struct {
	Version string `json:"version"`
}

type Handler struct {
	source StatusSource
}

func NewHandler(source StatusSource) *Handler {
	return &Handler{source: source}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ping", h.Ping)
	router.GET("/status", h.Status)
	router.GET("/frame", h.Frame)
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true, Data: pingResponse{Version: config.Version}})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, response{Ok: true, Data: h.source.Snapshot()})
}

// Frame returns the most recently built frame in its wire form.
func (h *Handler) Frame(c *gin.Context) {
	frame, ok := h.source.LastFrame()
	if !ok {
		c.JSON(http.StatusNotFound, response{Ok: false, Error: "no frame sampled yet"})
		return
	}
	c.JSON(http.StatusOK, response{Ok: true, Data: frame})
}
