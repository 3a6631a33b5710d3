package repository

import (
	"context"
	"time"

	"github.com/user/miroku/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Create 创建标签，同名冲突返回 Conflict
func (r *TagRepository) Create(ctx context.Context, ownerID int, name string) (*model.Tag, error) {
	tag := &model.Tag{OwnerID: ownerID, Name: name, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, translate(err, "标签")
	}
	return tag, nil
}

// Get 获取标签
func (r *TagRepository) Get(ctx context.Context, ownerID, id int) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&tag).Error; err != nil {
		return nil, translate(err, "标签")
	}
	return &tag, nil
}

// FindByName 按名称查找，不存在返回 nil
func (r *TagRepository) FindByName(ctx context.Context, ownerID int, name string) (*model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerID, name).Limit(1).Find(&tags).Error
	if err != nil || len(tags) == 0 {
		return nil, err
	}
	return &tags[0], nil
}

// ListWithUsage 列出标签及使用次数
func (r *TagRepository) ListWithUsage(ctx context.Context, ownerID int) ([]model.TagUsage, error) {
	var rows []model.TagUsage
	err := r.db.WithContext(ctx).Model(&model.Tag{}).
		Select("tags.*, COUNT(movie_tags.movie_id) AS movie_count").
		Joins("LEFT JOIN movie_tags ON movie_tags.tag_id = tags.id").
		Where("tags.owner_id = ?", ownerID).
		Group("tags.id").
		Order("tags.name ASC").
		Scan(&rows).Error
	return rows, err
}

// Rename 重命名标签
func (r *TagRepository) Rename(ctx context.Context, ownerID, id int, name string) error {
	res := r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("name", name)
	if res.Error != nil {
		return translate(res.Error, "标签")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "标签")
	}
	return nil
}

// Delete 删除标签及其关联
func (r *TagRepository) Delete(ctx context.Context, ownerID, id int) error {
	db := r.db.WithContext(ctx)
	res := db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Tag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "标签")
	}
	return db.Where("tag_id = ?", id).Delete(&model.MovieTag{}).Error
}

// Attach 给电影打标签，重复打标签视为成功
func (r *TagRepository) Attach(ctx context.Context, movieID, tagID int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.MovieTag{MovieID: movieID, TagID: tagID}).Error
}

// Detach 移除电影标签
func (r *TagRepository) Detach(ctx context.Context, movieID, tagID int) error {
	return r.db.WithContext(ctx).
		Where("movie_id = ? AND tag_id = ?", movieID, tagID).
		Delete(&model.MovieTag{}).Error
}

// ListLinksByOwner 获取用户全部电影-标签关联
func (r *TagRepository) ListLinksByOwner(ctx context.Context, ownerID int) ([]model.MovieTag, error) {
	var links []model.MovieTag
	err := r.db.WithContext(ctx).
		Joins("JOIN tags ON tags.id = movie_tags.tag_id").
		Where("tags.owner_id = ?", ownerID).
		Find(&links).Error
	return links, err
}

// ListByOwner 获取用户全部标签
func (r *TagRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&tags).Error
	return tags, err
}
