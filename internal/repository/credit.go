package repository

import (
	"context"
	"time"

	"github.com/user/miroku/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository 电影-人物-角色关联表
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// castOrdering 演员顺序升序、空值在后，同序按插入顺序
const castOrdering = "CASE WHEN cast_order IS NULL THEN 1 ELSE 0 END, cast_order ASC, id ASC"

// ListForMovie 获取电影的全部参与记录（预加载人物）
func (r *CreditRepository) ListForMovie(ctx context.Context, movieID int) ([]model.Credit, error) {
	var credits []model.Credit
	err := r.db.WithContext(ctx).Preload("Person").
		Where("movie_id = ?", movieID).
		Order(castOrdering).
		Find(&credits).Error
	return credits, err
}

// ListByPerson 获取人物的全部参与记录
func (r *CreditRepository) ListByPerson(ctx context.Context, personID int) ([]model.Credit, error) {
	var credits []model.Credit
	err := r.db.WithContext(ctx).
		Where("person_id = ?", personID).
		Order("id ASC").
		Find(&credits).Error
	return credits, err
}

// ListByOwner 获取用户全部电影的参与记录
func (r *CreditRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.Credit, error) {
	var credits []model.Credit
	err := r.db.WithContext(ctx).
		Joins("JOIN movies ON movies.id = credits.movie_id").
		Where("movies.owner_id = ?", ownerID).
		Order("credits.id ASC").
		Find(&credits).Error
	return credits, err
}

// Get 按 ID 获取参与记录
func (r *CreditRepository) Get(ctx context.Context, id int) (*model.Credit, error) {
	var credit model.Credit
	if err := r.db.WithContext(ctx).First(&credit, id).Error; err != nil {
		return nil, translate(err, "参与记录")
	}
	return &credit, nil
}

// Exists 检查 (movie, role, person) 是否已存在
func (r *CreditRepository) Exists(ctx context.Context, movieID int, role model.Role, personID int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Credit{}).
		Where("movie_id = ? AND role = ? AND person_id = ?", movieID, role, personID).
		Count(&count).Error
	return count > 0, err
}

// Create 插入参与记录
func (r *CreditRepository) Create(ctx context.Context, credit *model.Credit) error {
	credit.CreatedAt = time.Now()
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(credit).Error, "参与记录")
}

// Delete 删除单条参与记录
func (r *CreditRepository) Delete(ctx context.Context, id int) error {
	res := r.db.WithContext(ctx).Delete(&model.Credit{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "参与记录")
	}
	return nil
}

// DeleteByIDs 批量删除
func (r *CreditRepository) DeleteByIDs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Credit{}).Error
}

// DeleteByMovie 删除电影某角色（role 为 nil 时全部角色）的参与记录
func (r *CreditRepository) DeleteByMovie(ctx context.Context, movieID int, role *model.Role) error {
	q := r.db.WithContext(ctx).Where("movie_id = ?", movieID)
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	return q.Delete(&model.Credit{}).Error
}

// UpdatePerson 把参与记录指向新的人物
func (r *CreditRepository) UpdatePerson(ctx context.Context, id, personID int) error {
	res := r.db.WithContext(ctx).Model(&model.Credit{}).Where("id = ?", id).Update("person_id", personID)
	if res.Error != nil {
		return translate(res.Error, "参与记录")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "参与记录")
	}
	return nil
}

// RoleCount 某人物某角色的参与数
type RoleCount struct {
	PersonID int
	Role     model.Role
	Count    int
}

// CountByPersonRole 统计用户所有人物按角色的参与数
func (r *CreditRepository) CountByPersonRole(ctx context.Context, ownerID int) ([]RoleCount, error) {
	var rows []RoleCount
	err := r.db.WithContext(ctx).Model(&model.Credit{}).
		Select("credits.person_id AS person_id, credits.role AS role, COUNT(*) AS count").
		Joins("JOIN persons ON persons.id = credits.person_id").
		Where("persons.owner_id = ?", ownerID).
		Group("credits.person_id, credits.role").
		Scan(&rows).Error
	return rows, err
}
