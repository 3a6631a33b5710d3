package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

type applyRequest struct {
	Fields []service.RefreshField `json:"fields" binding:"required,min=1,dive,refresh_field"`
}

// RefreshDiff 单部电影与外部目录的差异
func (h *Handler) RefreshDiff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	diff, err := h.Refresh.Diff(c.Request.Context(), owner(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, diff)
}

// RefreshApply 应用选定字段；部分字段失败时返回 207
func (h *Handler) RefreshApply(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req applyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Refresh.Apply(c.Request.Context(), owner(c), id, req.Fields)
	switch {
	case apperr.KindOf(err) == apperr.KindPartialFailure:
		utils.MultiStatus(c, res, err)
	case err != nil:
		utils.Fail(c, err)
	default:
		utils.Success(c, res)
	}
}

// RefreshAll 批量刷新全部可刷新电影，完成后返回报告
func (h *Handler) RefreshAll(c *gin.Context) {
	report, err := h.Refresh.RefreshAll(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, report)
}
