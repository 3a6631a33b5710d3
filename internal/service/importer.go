package service

import (
	"context"
	"strings"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// ImportService 从外部目录导入电影，或手动录入
type ImportService struct {
	repos   *repository.Repositories
	catalog MovieCatalog
}

func NewImportService(repos *repository.Repositories, catalog MovieCatalog) *ImportService {
	return &ImportService{repos: repos, catalog: catalog}
}

// ImportResult 导入结果
type ImportResult struct {
	Movie   model.MovieView `json:"movie"`
	Linked  int             `json:"linked"`
	Skipped int             `json:"skipped"` // 已存在而跳过的关联
}

// Import 按外部 ID 导入电影、快照与演职员
// 同一外部 ID 已在收藏中时返回 Conflict；演职员人物按外部 ID 复用
func (s *ImportService) Import(ctx context.Context, ownerID, externalID int) (*ImportResult, error) {
	if externalID <= 0 {
		return nil, apperr.InvalidArgument("无效的外部目录 ID")
	}
	existing, err := s.repos.Movie.FindByExternalID(ctx, ownerID, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("该电影已添加（%s）", existing.Title())
	}

	fetched, err := s.catalog.FetchMovie(ctx, externalID)
	if err != nil {
		return nil, err
	}

	ext := externalID
	movie := &model.Movie{
		OwnerID:    ownerID,
		ExternalID: &ext,
		Snapshot:   snapshotOf(&fetched.Details),
	}
	result := &ImportResult{}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Movie.Create(ctx, movie); err != nil {
			return err
		}
		for _, role := range model.Roles {
			for _, p := range fetched.PeopleFor(role) {
				person, err := resolvePerson(ctx, tx, ownerID, p, false)
				if err != nil {
					return err
				}
				var order *int
				if role == model.RoleCast {
					order = p.Order
				}
				linked, err := linkOrSkip(ctx, tx, movie.ID, person, role, order)
				if err != nil {
					return err
				}
				if linked {
					result.Linked++
				} else {
					result.Skipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Movie = movie.View()
	logging.Info().Int("owner_id", ownerID).Int("external_id", externalID).Int("movie_id", movie.ID).
		Int("linked", result.Linked).Msg("[Import] 电影导入完成")
	return result, nil
}

func snapshotOf(d *model.CatalogMovieDetails) model.MovieSnapshot {
	countries := d.ProductionCountries
	if countries == nil {
		countries = []model.Country{}
	}
	return model.MovieSnapshot{
		Title:               d.Title,
		PosterPath:          d.PosterPath,
		ReleaseDate:         d.ReleaseDate,
		ProductionCountries: countries,
	}
}

// ManualInput 手动录入的电影字段
type ManualInput struct {
	Title               string
	PosterPath          string
	ReleaseDate         string
	ProductionCountries []model.Country
}

// CreateManual 手动创建电影（无外部 ID，不可刷新）
func (s *ImportService) CreateManual(ctx context.Context, ownerID int, in ManualInput) (*model.Movie, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.InvalidArgument("标题不能为空")
	}
	countries := in.ProductionCountries
	if countries == nil {
		countries = []model.Country{}
	}
	movie := &model.Movie{
		OwnerID: ownerID,
		Snapshot: model.MovieSnapshot{
			Title:               title,
			PosterPath:          strings.TrimSpace(in.PosterPath),
			ReleaseDate:         strings.TrimSpace(in.ReleaseDate),
			ProductionCountries: countries,
		},
	}
	if err := s.repos.Movie.Create(ctx, movie); err != nil {
		return nil, err
	}
	return movie, nil
}
