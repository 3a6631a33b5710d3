package service

import (
	"context"
	"strings"
	"time"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// LibraryService 电影收藏、观影记录与标签
type LibraryService struct {
	repos *repository.Repositories
}

func NewLibraryService(repos *repository.Repositories) *LibraryService {
	return &LibraryService{repos: repos}
}

// MovieDetail 电影详情页数据
type MovieDetail struct {
	model.MovieView
	Credits *model.CreditGroups `json:"credits"`
	Logs    []model.WatchLog    `json:"logs"`
	Tags    []model.Tag         `json:"tags"`
}

// ListMovies 用户全部电影
func (s *LibraryService) ListMovies(ctx context.Context, ownerID int) ([]model.MovieView, error) {
	movies, err := s.repos.Movie.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]model.MovieView, 0, len(movies))
	for _, m := range movies {
		views = append(views, m.View())
	}
	return views, nil
}

// GetMovie 电影详情：生效字段、演职员、观影记录、标签
func (s *LibraryService) GetMovie(ctx context.Context, ownerID, id int) (*MovieDetail, error) {
	movie, err := s.repos.Movie.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	credits, err := s.repos.Credit.ListForMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.repos.WatchLog.ListByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.tagsForMovie(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &MovieDetail{
		MovieView: movie.View(),
		Credits:   GroupCredits(credits),
		Logs:      logs,
		Tags:      tags,
	}, nil
}

func (s *LibraryService) tagsForMovie(ctx context.Context, ownerID, movieID int) ([]model.Tag, error) {
	links, err := s.repos.Tag.ListLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	tags, err := s.repos.Tag.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	attached := make(map[int]bool)
	for _, l := range links {
		if l.MovieID == movieID {
			attached[l.TagID] = true
		}
	}
	res := []model.Tag{}
	for _, t := range tags {
		if attached[t.ID] {
			res = append(res, t)
		}
	}
	return res, nil
}

// OverridesInput 覆盖值；nil 表示清除该覆盖
type OverridesInput struct {
	Title               *string
	PosterPath          *string
	ReleaseDate         *string
	ProductionCountries []model.Country
}

// UpdateOverrides 整体替换覆盖值，快照不受影响
func (s *LibraryService) UpdateOverrides(ctx context.Context, ownerID, id int, in OverridesInput) (*model.Movie, error) {
	movie, err := s.repos.Movie.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	movie.Overrides = model.MovieOverrides{
		Title:               trimmed(in.Title),
		PosterPath:          trimmed(in.PosterPath),
		ReleaseDate:         trimmed(in.ReleaseDate),
		ProductionCountries: in.ProductionCountries,
	}
	if err := s.repos.Movie.UpdateOverrides(ctx, movie); err != nil {
		return nil, err
	}
	return movie, nil
}

// trimmed 空白值视为未设置
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// DeleteMovie 删除电影及关联数据；人物保留，可通过清理未使用人物回收
func (s *LibraryService) DeleteMovie(ctx context.Context, ownerID, id int) error {
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		return tx.Movie.Delete(ctx, ownerID, id)
	})
}

// WatchLogInput 观影记录字段
type WatchLogInput struct {
	WatchedAt time.Time
	Score     *int
	Note      string
}

func (in WatchLogInput) validate() error {
	if in.Score != nil && (*in.Score < 1 || *in.Score > 10) {
		return apperr.InvalidArgument("评分必须在 1 到 10 之间")
	}
	if in.WatchedAt.IsZero() {
		return apperr.InvalidArgument("观影日期不能为空")
	}
	return nil
}

// AddWatchLog 新增观影记录
func (s *LibraryService) AddWatchLog(ctx context.Context, ownerID, movieID int, in WatchLogInput) (*model.WatchLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.repos.Movie.Get(ctx, ownerID, movieID); err != nil {
		return nil, err
	}
	log := &model.WatchLog{
		OwnerID:   ownerID,
		MovieID:   movieID,
		WatchedAt: in.WatchedAt,
		Score:     in.Score,
		Note:      strings.TrimSpace(in.Note),
	}
	if err := s.repos.WatchLog.Create(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// ListWatchLogs 观影记录，movieID 为 0 时返回全部
func (s *LibraryService) ListWatchLogs(ctx context.Context, ownerID, movieID int) ([]model.WatchLog, error) {
	return s.repos.WatchLog.ListByOwner(ctx, ownerID, movieID)
}

// UpdateWatchLog 修改观影记录
func (s *LibraryService) UpdateWatchLog(ctx context.Context, ownerID, id int, in WatchLogInput) (*model.WatchLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	log, err := s.repos.WatchLog.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	log.WatchedAt = in.WatchedAt
	log.Score = in.Score
	log.Note = strings.TrimSpace(in.Note)
	if err := s.repos.WatchLog.Update(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// DeleteWatchLog 删除观影记录
func (s *LibraryService) DeleteWatchLog(ctx context.Context, ownerID, id int) error {
	return s.repos.WatchLog.Delete(ctx, ownerID, id)
}

// CreateTag 创建标签，同名返回 Conflict
func (s *LibraryService) CreateTag(ctx context.Context, ownerID int, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("标签名不能为空")
	}
	existing, err := s.repos.Tag.FindByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("标签 %s 已存在", name)
	}
	return s.repos.Tag.Create(ctx, ownerID, name)
}

// ListTags 标签及使用次数
func (s *LibraryService) ListTags(ctx context.Context, ownerID int) ([]model.TagUsage, error) {
	return s.repos.Tag.ListWithUsage(ctx, ownerID)
}

// RenameTag 重命名标签
func (s *LibraryService) RenameTag(ctx context.Context, ownerID, id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.InvalidArgument("标签名不能为空")
	}
	return s.repos.Tag.Rename(ctx, ownerID, id, name)
}

// DeleteTag 删除标签及其关联
func (s *LibraryService) DeleteTag(ctx context.Context, ownerID, id int) error {
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		return tx.Tag.Delete(ctx, ownerID, id)
	})
}

// AttachTag 给电影打标签，重复打标签无副作用
func (s *LibraryService) AttachTag(ctx context.Context, ownerID, movieID, tagID int) error {
	if err := s.checkMovieTag(ctx, ownerID, movieID, tagID); err != nil {
		return err
	}
	return s.repos.Tag.Attach(ctx, movieID, tagID)
}

// DetachTag 移除电影标签
func (s *LibraryService) DetachTag(ctx context.Context, ownerID, movieID, tagID int) error {
	if err := s.checkMovieTag(ctx, ownerID, movieID, tagID); err != nil {
		return err
	}
	return s.repos.Tag.Detach(ctx, movieID, tagID)
}

func (s *LibraryService) checkMovieTag(ctx context.Context, ownerID, movieID, tagID int) error {
	if _, err := s.repos.Movie.Get(ctx, ownerID, movieID); err != nil {
		return err
	}
	_, err := s.repos.Tag.Get(ctx, ownerID, tagID)
	return err
}
