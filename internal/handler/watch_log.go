package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

type watchLogRequest struct {
	WatchedAt string `json:"watched_at" binding:"required,datetime=2006-01-02"`
	Score     *int   `json:"score" binding:"omitempty,min=1,max=10"`
	Note      string `json:"note" binding:"max=2000"`
}

func (r watchLogRequest) input() service.WatchLogInput {
	// datetime 校验已保证格式
	watchedAt, _ := time.ParseInLocation("2006-01-02", r.WatchedAt, time.Local)
	return service.WatchLogInput{WatchedAt: watchedAt, Score: r.Score, Note: r.Note}
}

// ListWatchLogs 观影记录，可按 movie_id 过滤
func (h *Handler) ListWatchLogs(c *gin.Context) {
	movieID, _ := strconv.Atoi(c.Query("movie_id"))
	logs, err := h.Library.ListWatchLogs(c.Request.Context(), owner(c), movieID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, logs)
}

// ListMovieLogs 某部电影的观影记录
func (h *Handler) ListMovieLogs(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.Repos.Movie.Get(c.Request.Context(), owner(c), movieID); err != nil {
		utils.Fail(c, err)
		return
	}
	logs, err := h.Library.ListWatchLogs(c.Request.Context(), owner(c), movieID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, logs)
}

// AddWatchLog 新增观影记录
func (h *Handler) AddWatchLog(c *gin.Context) {
	movieID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req watchLogRequest
	if !bindJSON(c, &req) {
		return
	}
	log, err := h.Library.AddWatchLog(c.Request.Context(), owner(c), movieID, req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, log)
}

// UpdateWatchLog 修改观影记录
func (h *Handler) UpdateWatchLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req watchLogRequest
	if !bindJSON(c, &req) {
		return
	}
	log, err := h.Library.UpdateWatchLog(c.Request.Context(), owner(c), id, req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, log)
}

// DeleteWatchLog 删除观影记录
func (h *Handler) DeleteWatchLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Library.DeleteWatchLog(c.Request.Context(), owner(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}
