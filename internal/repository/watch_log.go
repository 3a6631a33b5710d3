package repository

import (
	"context"
	"time"

	"github.com/user/miroku/internal/model"
	"gorm.io/gorm"
)

type WatchLogRepository struct {
	db *gorm.DB
}

func NewWatchLogRepository(db *gorm.DB) *WatchLogRepository {
	return &WatchLogRepository{db: db}
}

// Create 新增观影记录
func (r *WatchLogRepository) Create(ctx context.Context, log *model.WatchLog) error {
	now := time.Now()
	log.CreatedAt = now
	log.UpdatedAt = now
	return r.db.WithContext(ctx).Create(log).Error
}

// Get 获取观影记录
func (r *WatchLogRepository) Get(ctx context.Context, ownerID, id int) (*model.WatchLog, error) {
	var log model.WatchLog
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&log).Error
	if err != nil {
		return nil, translate(err, "观影记录")
	}
	return &log, nil
}

// ListByOwner 获取用户全部观影记录，movieID > 0 时只取该电影
func (r *WatchLogRepository) ListByOwner(ctx context.Context, ownerID, movieID int) ([]model.WatchLog, error) {
	var logs []model.WatchLog
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if movieID > 0 {
		q = q.Where("movie_id = ?", movieID)
	}
	err := q.Order("watched_at DESC, id DESC").Find(&logs).Error
	return logs, err
}

// Update 更新评分、短评与观影时间
func (r *WatchLogRepository) Update(ctx context.Context, log *model.WatchLog) error {
	log.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(log).
		Where("owner_id = ?", log.OwnerID).
		Select("watched_at", "score", "note", "updated_at").
		Updates(log)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "观影记录")
	}
	return nil
}

// Delete 删除观影记录
func (r *WatchLogRepository) Delete(ctx context.Context, ownerID, id int) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.WatchLog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "观影记录")
	}
	return nil
}
