package v3

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"masterplan/internal/exporter"
	"masterplan/internal/importer"
	"masterplan/internal/store"
)

// 最近运行主表在内存中的保留时间
const tableCacheTTL = 30 * time.Minute

// Handler V3 API 处理器
type Handler struct {
	store     *store.Store
	opts      importer.Options
	exportDir string
	logger    *zap.Logger
	renderer  *exporter.Renderer
	tables    *tableCache
}

// NewHandler 创建 V3 API 处理器；exportDir 存放生成的工作簿
func NewHandler(st *store.Store, opts importer.Options, exportDir string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     st,
		opts:      opts,
		exportDir: exportDir,
		logger:    logger,
		renderer:  exporter.NewRenderer(),
		tables:    newTableCache(),
	}
}

// RegisterRoutes 注册 V3 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 生成主计划
	router.POST("/plans", h.CreatePlan)

	// 运行查询
	router.GET("/plans", h.ListPlans)
	router.GET("/plans/:id", h.GetPlan)
	router.GET("/plans/:id/download", h.DownloadPlan)

	// 图表数据
	router.GET("/plans/:id/products", h.ListProducts)
	router.GET("/plans/:id/chart", h.GetChart)
}
