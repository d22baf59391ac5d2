package v3

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masterplan/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized bool       `json:"initialized"` // 是否已有运行记录
	TotalRuns   int        `json:"totalRuns"`
	LastRun     *store.Run `json:"lastRun,omitempty"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	total, err := h.store.CountRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行记录失败"})
		return
	}

	resp := StatusResponse{Initialized: total > 0, TotalRuns: total}
	if total > 0 {
		runs, err := h.store.ListRuns(1)
		if err == nil && len(runs) > 0 {
			resp.LastRun = runs[0]
		}
	}
	c.JSON(http.StatusOK, resp)
}
