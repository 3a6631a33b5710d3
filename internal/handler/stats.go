package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

// defaultStatsLimit 人物排行默认条数
const defaultStatsLimit = 20

// GetStats 观影统计，可按 year 过滤；limit 截断导演/演员排行
func (h *Handler) GetStats(c *gin.Context) {
	var filter service.StatsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultStatsLimit)))
	if err != nil {
		utils.BadRequest(c, "无效的 limit")
		return
	}

	stats, err := h.Stats.Compute(c.Request.Context(), owner(c), filter)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	stats.ByDirector = service.Top(stats.ByDirector, limit)
	stats.ByCast = service.Top(stats.ByCast, limit)
	utils.Success(c, stats)
}
