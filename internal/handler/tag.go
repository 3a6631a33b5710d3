package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/utils"
)

type tagRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// ListTags 标签及使用次数
func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.Library.ListTags(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, tags)
}

// CreateTag 新建标签
func (h *Handler) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, err := h.Library.CreateTag(c.Request.Context(), owner(c), req.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, tag)
}

// RenameTag 重命名标签
func (h *Handler) RenameTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Library.RenameTag(c.Request.Context(), owner(c), id, req.Name); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DeleteTag 删除标签
func (h *Handler) DeleteTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Library.DeleteTag(c.Request.Context(), owner(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// AttachTag 给电影打标签
func (h *Handler) AttachTag(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tagId")
	if !ok {
		return
	}
	if err := h.Library.AttachTag(c.Request.Context(), owner(c), movieID, tagID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DetachTag 移除电影标签
func (h *Handler) DetachTag(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tagId")
	if !ok {
		return
	}
	if err := h.Library.DetachTag(c.Request.Context(), owner(c), movieID, tagID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}
