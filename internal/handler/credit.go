package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

// linkRequest 按 person_id 关联已有人物，或按 name 查找/新建
type linkRequest struct {
	Role      model.Role `json:"role" binding:"required,credit_role"`
	PersonID  int        `json:"person_id" binding:"omitempty,gt=0"`
	Name      string     `json:"name" binding:"max=200"`
	CastOrder *int       `json:"cast_order" binding:"omitempty,gte=0"`
}

type relinkRequest struct {
	PersonID int `json:"person_id" binding:"required,gt=0"`
}

// ListCredits 电影演职员，按角色分组
func (h *Handler) ListCredits(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	groups, err := h.Credits.ListForMovie(c.Request.Context(), owner(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, groups)
}

// AddCredit 新增关联
func (h *Handler) AddCredit(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req linkRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		credit *model.Credit
		err    error
	)
	switch {
	case req.PersonID > 0:
		credit, err = h.Credits.Link(c.Request.Context(), owner(c), service.LinkInput{
			MovieID:   movieID,
			PersonID:  req.PersonID,
			Role:      req.Role,
			CastOrder: req.CastOrder,
		})
	case req.Name != "":
		credit, err = h.Credits.LinkByName(c.Request.Context(), owner(c), movieID, req.Role, req.Name, req.CastOrder)
	default:
		err = apperr.InvalidArgument("需要 person_id 或 name")
	}
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, credit)
}

// ClearCredits 清除电影某角色（或全部）的关联
func (h *Handler) ClearCredits(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var role *model.Role
	if r := c.Query("role"); r != "" {
		v := model.Role(r)
		role = &v
	}
	if err := h.Credits.UnlinkAll(c.Request.Context(), owner(c), movieID, role); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DeleteCredit 删除单条关联
func (h *Handler) DeleteCredit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Credits.Unlink(c.Request.Context(), owner(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// RelinkCredit 把关联改指向另一人物
func (h *Handler) RelinkCredit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req relinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Credits.Relink(c.Request.Context(), owner(c), id, req.PersonID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}
