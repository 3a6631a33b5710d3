package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/utils"
)

// CatalogSearch 外部目录搜索代理
func (h *Handler) CatalogSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		utils.BadRequest(c, "请输入搜索关键词")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	res, err := h.Catalog.Search(c.Request.Context(), query, page)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, res)
}

// CatalogMovie 外部目录电影详情代理（含归一化演职员）
func (h *Handler) CatalogMovie(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	movie, err := h.Catalog.FetchMovie(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movie)
}
