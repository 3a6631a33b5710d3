package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/config"
	"github.com/user/miroku/internal/middleware"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

// Catalog 外部目录客户端
type Catalog interface {
	service.MovieCatalog
	Search(ctx context.Context, query string, page int) (*model.CatalogSearchPage, error)
}

// Handler HTTP 处理器
type Handler struct {
	Repos   *repository.Repositories
	Config  *config.Config
	Catalog Catalog

	Persons  *service.PersonService
	Credits  *service.CreditService
	Merges   *service.MergeService
	Refresh  *service.RefreshService
	Importer *service.ImportService
	Library  *service.LibraryService
	Stats    *service.StatsService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config, catalog Catalog) *Handler {
	return &Handler{
		Repos:    repos,
		Config:   cfg,
		Catalog:  catalog,
		Persons:  service.NewPersonService(repos),
		Credits:  service.NewCreditService(repos),
		Merges:   service.NewMergeService(repos),
		Refresh:  service.NewRefreshService(repos, catalog, cfg.RefreshDelay),
		Importer: service.NewImportService(repos, catalog),
		Library:  service.NewLibraryService(repos),
		Stats:    service.NewStatsService(repos),
	}
}

// owner 当前登录用户，即数据所有者
func owner(c *gin.Context) int {
	return middleware.GetUserID(c)
}

// paramID 解析路径中的整数 ID，失败时已写入 400
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "无效的 "+name)
		return 0, false
	}
	return id, true
}

// bindJSON 绑定请求体，失败时已写入 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}
