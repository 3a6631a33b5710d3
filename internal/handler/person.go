package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/utils"
)

type personRequest struct {
	Name       string `json:"name" binding:"required,max=200"`
	ExternalID *int   `json:"external_id" binding:"omitempty,gt=0"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

type mergeRequest struct {
	TargetID int `json:"target_id" binding:"required,gt=0"`
}

// ListPersons 活跃人物及使用情况
func (h *Handler) ListPersons(c *gin.Context) {
	persons, err := h.Persons.ListActive(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, persons)
}

// CreatePerson 手动创建人物
func (h *Handler) CreatePerson(c *gin.Context) {
	var req personRequest
	if !bindJSON(c, &req) {
		return
	}
	person, err := h.Persons.Create(c.Request.Context(), owner(c), req.ExternalID, req.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, person)
}

// GetPerson 人物详情
func (h *Handler) GetPerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.Persons.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, detail)
}

// RenamePerson 修改显示名
func (h *Handler) RenamePerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req renameRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Persons.Rename(c.Request.Context(), owner(c), id, req.Name); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DuplicatePersons 疑似重复人物
func (h *Handler) DuplicatePersons(c *gin.Context) {
	groups, err := h.Persons.DuplicateGroups(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, groups)
}

// MergeCandidates 合并目标候选
func (h *Handler) MergeCandidates(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	candidates, err := h.Persons.MergeCandidates(c.Request.Context(), owner(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, candidates)
}

// MergePerson 把 :id 合并到 target_id
func (h *Handler) MergePerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req mergeRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Merges.Merge(c.Request.Context(), owner(c), id, req.TargetID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, res)
}

// UnmergePerson 取消合并标记
func (h *Handler) UnmergePerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Merges.Unmerge(c.Request.Context(), owner(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DeleteUnusedPersons 清理没有参与记录的人物
func (h *Handler) DeleteUnusedPersons(c *gin.Context) {
	n, err := h.Persons.DeleteUnused(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"deleted": n})
}
