package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/miroku/internal/model"
	"gorm.io/gorm"
)

// PersonRepository 人物身份存储，所有查询限定 owner
type PersonRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// Create 创建人物
func (r *PersonRepository) Create(ctx context.Context, ownerID int, externalID *int, displayName string) (*model.Person, error) {
	now := time.Now()
	person := &model.Person{
		OwnerID:     ownerID,
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(person).Error; err != nil {
		return nil, translate(err, "人物")
	}
	return person, nil
}

// Get 按 ID 获取人物（含墓碑）
func (r *PersonRepository) Get(ctx context.Context, ownerID, id int) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&person).Error
	if err != nil {
		return nil, translate(err, "人物")
	}
	return &person, nil
}

// FindByExternalID 按 (owner_id, external_id) 查找，活跃人物优先，其次最早创建的墓碑
func (r *PersonRepository) FindByExternalID(ctx context.Context, ownerID, externalID int) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND external_id = ?", ownerID, externalID).
		Order("CASE WHEN merged_into IS NULL THEN 0 ELSE 1 END, id ASC").
		First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// FindActiveByName 查找没有外部 ID、显示名完全相同的活跃人物
func (r *PersonRepository) FindActiveByName(ctx context.Context, ownerID int, name string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND display_name = ? AND external_id IS NULL AND merged_into IS NULL", ownerID, name).
		Order("id ASC").
		First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// Rename 更新显示名，不影响合并状态
func (r *PersonRepository) Rename(ctx context.Context, ownerID, id int, name string) error {
	return r.update(ctx, ownerID, id, map[string]interface{}{"display_name": name})
}

// SetMergedInto 写入墓碑标记
func (r *PersonRepository) SetMergedInto(ctx context.Context, ownerID, id, targetID int) error {
	return r.update(ctx, ownerID, id, map[string]interface{}{"merged_into": targetID})
}

// ClearMergedInto 清除墓碑标记
func (r *PersonRepository) ClearMergedInto(ctx context.Context, ownerID, id int) error {
	return r.update(ctx, ownerID, id, map[string]interface{}{"merged_into": gorm.Expr("NULL")})
}

func (r *PersonRepository) update(ctx context.Context, ownerID, id int, values map[string]interface{}) error {
	values["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&model.Person{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "人物")
	}
	return nil
}

// ListActive 列出全部活跃人物，按显示名排序
func (r *PersonRepository) ListActive(ctx context.Context, ownerID int) ([]model.Person, error) {
	var persons []model.Person
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND merged_into IS NULL", ownerID).
		Order("display_name ASC, id ASC").
		Find(&persons).Error
	return persons, err
}

// ListAll 列出全部人物（含墓碑）
func (r *PersonRepository) ListAll(ctx context.Context, ownerID int) ([]model.Person, error) {
	var persons []model.Person
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&persons).Error
	return persons, err
}

// DeleteUnused 删除没有任何参与记录的活跃人物；墓碑及仍被墓碑指向的合并目标不受影响
func (r *PersonRepository) DeleteUnused(ctx context.Context, ownerID int) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND merged_into IS NULL", ownerID).
		Where("NOT EXISTS (SELECT 1 FROM credits WHERE credits.person_id = persons.id)").
		Where("NOT EXISTS (SELECT 1 FROM persons AS tombstones WHERE tombstones.merged_into = persons.id)").
		Delete(&model.Person{})
	return res.RowsAffected, res.Error
}

// DuplicateExternalIDs 返回被两个及以上活跃人物共用的外部 ID
func (r *PersonRepository) DuplicateExternalIDs(ctx context.Context, ownerID int) ([]int, error) {
	var ids []int
	err := r.db.WithContext(ctx).Model(&model.Person{}).
		Where("owner_id = ? AND merged_into IS NULL AND external_id IS NOT NULL", ownerID).
		Group("external_id").
		Having("COUNT(*) > 1").
		Order("external_id ASC").
		Pluck("external_id", &ids).Error
	return ids, err
}

// ListActiveByExternalIDs 列出外部 ID 在给定集合中的活跃人物
func (r *PersonRepository) ListActiveByExternalIDs(ctx context.Context, ownerID int, externalIDs []int) ([]model.Person, error) {
	var persons []model.Person
	if len(externalIDs) == 0 {
		return persons, nil
	}
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND merged_into IS NULL AND external_id IN ?", ownerID, externalIDs).
		Order("external_id ASC, id ASC").
		Find(&persons).Error
	return persons, err
}
