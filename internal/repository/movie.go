package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/miroku/internal/model"
	"gorm.io/gorm"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Create 创建电影
func (r *MovieRepository) Create(ctx context.Context, movie *model.Movie) error {
	now := time.Now()
	movie.CreatedAt = now
	movie.UpdatedAt = now
	return translate(r.db.WithContext(ctx).Create(movie).Error, "电影")
}

// Get 按 ID 获取电影，限定 owner
func (r *MovieRepository) Get(ctx context.Context, ownerID, id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&movie).Error
	if err != nil {
		return nil, translate(err, "电影")
	}
	return &movie, nil
}

// FindByExternalID 根据外部目录 ID 查找电影，不存在返回 nil
func (r *MovieRepository) FindByExternalID(ctx context.Context, ownerID, externalID int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND external_id = ?", ownerID, externalID).
		First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// ListByOwner 获取用户全部电影，按创建时间倒序
func (r *MovieRepository) ListByOwner(ctx context.Context, ownerID int) ([]*model.Movie, error) {
	var movies []*model.Movie
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&movies).Error
	return movies, err
}

// ListRefreshable 获取带外部 ID 的电影（可刷新），按 ID 升序
func (r *MovieRepository) ListRefreshable(ctx context.Context, ownerID int) ([]*model.Movie, error) {
	var movies []*model.Movie
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND external_id IS NOT NULL", ownerID).
		Order("id ASC").
		Find(&movies).Error
	return movies, err
}

// 快照与覆盖列名
const (
	ColSnapshotTitle       = "snapshot_title"
	ColSnapshotPosterPath  = "snapshot_poster_path"
	ColSnapshotReleaseDate = "snapshot_release_date"
	ColSnapshotCountries   = "snapshot_production_countries"
)

var overrideColumns = []string{
	"override_title", "override_poster_path", "override_release_date", "override_production_countries",
}

// UpdateSnapshot 只覆写指定的快照列，覆盖值不受影响
func (r *MovieRepository) UpdateSnapshot(ctx context.Context, movie *model.Movie, columns ...string) error {
	return r.save(ctx, movie, columns)
}

// UpdateOverrides 写入全部覆盖字段（nil 表示清除）
func (r *MovieRepository) UpdateOverrides(ctx context.Context, movie *model.Movie) error {
	return r.save(ctx, movie, overrideColumns)
}

func (r *MovieRepository) save(ctx context.Context, movie *model.Movie, columns []string) error {
	movie.UpdatedAt = time.Now()
	cols := append(append([]string{}, columns...), "updated_at")

	res := r.db.WithContext(ctx).Model(movie).
		Where("owner_id = ?", movie.OwnerID).
		Select(cols).
		Updates(movie)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "电影")
	}
	return nil
}

// Delete 删除电影及其关联数据（参与记录、观影记录、标签关联）
func (r *MovieRepository) Delete(ctx context.Context, ownerID, id int) error {
	db := r.db.WithContext(ctx)
	res := db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Movie{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "电影")
	}
	if err := db.Where("movie_id = ?", id).Delete(&model.Credit{}).Error; err != nil {
		return err
	}
	if err := db.Where("movie_id = ?", id).Delete(&model.WatchLog{}).Error; err != nil {
		return err
	}
	return db.Where("movie_id = ?", id).Delete(&model.MovieTag{}).Error
}
