package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

type importRequest struct {
	ExternalID int `json:"external_id" binding:"required,gt=0"`
}

type manualMovieRequest struct {
	Title               string          `json:"title" binding:"required,max=500"`
	PosterPath          string          `json:"poster_path" binding:"max=500"`
	ReleaseDate         string          `json:"release_date" binding:"omitempty,datetime=2006-01-02"`
	ProductionCountries []model.Country `json:"production_countries"`
}

// overridesRequest 覆盖值；字段为 null 表示清除
type overridesRequest struct {
	Title               *string         `json:"title" binding:"omitempty,max=500"`
	PosterPath          *string         `json:"poster_path" binding:"omitempty,max=500"`
	ReleaseDate         *string         `json:"release_date" binding:"omitempty,datetime=2006-01-02"`
	ProductionCountries []model.Country `json:"production_countries"`
}

// ListMovies 收藏列表
func (h *Handler) ListMovies(c *gin.Context) {
	movies, err := h.Library.ListMovies(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// GetMovie 电影详情
func (h *Handler) GetMovie(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.Library.GetMovie(c.Request.Context(), owner(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, detail)
}

// ImportMovie 从外部目录导入
func (h *Handler) ImportMovie(c *gin.Context) {
	var req importRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Importer.Import(c.Request.Context(), owner(c), req.ExternalID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, res)
}

// CreateMovie 手动录入
func (h *Handler) CreateMovie(c *gin.Context) {
	var req manualMovieRequest
	if !bindJSON(c, &req) {
		return
	}
	movie, err := h.Importer.CreateManual(c.Request.Context(), owner(c), service.ManualInput{
		Title:               req.Title,
		PosterPath:          req.PosterPath,
		ReleaseDate:         req.ReleaseDate,
		ProductionCountries: req.ProductionCountries,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, movie.View())
}

// UpdateOverrides 设置或清除覆盖值
func (h *Handler) UpdateOverrides(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req overridesRequest
	if !bindJSON(c, &req) {
		return
	}
	movie, err := h.Library.UpdateOverrides(c.Request.Context(), owner(c), id, service.OverridesInput{
		Title:               req.Title,
		PosterPath:          req.PosterPath,
		ReleaseDate:         req.ReleaseDate,
		ProductionCountries: req.ProductionCountries,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, movie.View())
}

// DeleteMovie 删除电影
func (h *Handler) DeleteMovie(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Library.DeleteMovie(c.Request.Context(), owner(c), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, nil)
}
