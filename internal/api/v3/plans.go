package v3

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"masterplan/internal/chart"
	"masterplan/internal/store"
)

const defaultRunListLimit = 50

// ListPlans 运行列表
// GET /api/plans?limit=
func (h *Handler) ListPlans(c *gin.Context) {
	limit := defaultRunListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 参数无效"})
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// loadRun 读取运行记录，失败时已写响应
func (h *Handler) loadRun(c *gin.Context) (*store.Run, bool) {
	run, err := h.store.GetRun(c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "运行记录不存在"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询运行记录失败"})
		return nil, false
	}
	return run, true
}

// GetPlan 运行详情（含单文件结果）
// GET /api/plans/:id
func (h *Handler) GetPlan(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	files, err := h.store.ListRunFiles(run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文件结果失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":         run,
		"files":       files,
		"downloadUrl": downloadURL(run),
	})
}

func downloadURL(run *store.Run) string {
	if run.Status != store.RunCompleted || run.OutputPath == "" {
		return ""
	}
	return fmt.Sprintf("/api/plans/%s/download", run.ID)
}

// buildContentDisposition 中文文件名按 RFC 5987 编码，另附 ASCII 名称
func buildContentDisposition(startedAt time.Time) string {
	day := startedAt.Format("20060102")
	ascii := fmt.Sprintf("masterplan-%s.xlsx", day)
	utf8Name := fmt.Sprintf("主计划_%s.xlsx", day)
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", ascii, url.PathEscape(utf8Name))
}

// DownloadPlan 下载运行生成的工作簿
// GET /api/plans/:id/download
func (h *Handler) DownloadPlan(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if downloadURL(run) == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "工作簿尚未生成"})
		return
	}
	if _, err := os.Stat(run.OutputPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "工作簿文件不存在"})
		return
	}

	c.Header("Content-Disposition", buildContentDisposition(run.StartedAt))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.File(run.OutputPath)
}

// ListProducts 运行中的品名
// GET /api/plans/:id/products
func (h *Handler) ListProducts(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	products, err := h.store.ListProducts(run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询品名失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetChart 单个品名的图表数据
// GET /api/plans/:id/chart?product=
func (h *Handler) GetChart(c *gin.Context) {
	product := strings.TrimSpace(c.Query("product"))
	if product == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 product 参数"})
		return
	}
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	if table, ok := h.tables.get(run.ID); ok {
		series, found := chart.FromTable(table, product)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "品名不存在"})
			return
		}
		c.JSON(http.StatusOK, series)
		return
	}

	records, err := h.store.ListRecords(run.ID, product)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询记录失败"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "品名不存在"})
		return
	}
	c.JSON(http.StatusOK, chart.FromRecords(run.Months(), records, product))
}
