package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// CreditService 电影与人物的角色关联
type CreditService struct {
	repos *repository.Repositories
}

func NewCreditService(repos *repository.Repositories) *CreditService {
	return &CreditService{repos: repos}
}

// ListForMovie 按角色分组，演员按 cast_order 升序（空值在后，同序按插入顺序）
func (s *CreditService) ListForMovie(ctx context.Context, ownerID, movieID int) (*model.CreditGroups, error) {
	if _, err := s.repos.Movie.Get(ctx, ownerID, movieID); err != nil {
		return nil, err
	}
	credits, err := s.repos.Credit.ListForMovie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	return GroupCredits(credits), nil
}

// GroupCredits 按角色分组并排序
func GroupCredits(credits []model.Credit) *model.CreditGroups {
	g := &model.CreditGroups{
		Directors: []model.Credit{},
		Writers:   []model.Credit{},
		Cast:      []model.Credit{},
	}
	for _, c := range credits {
		switch c.Role {
		case model.RoleDirector:
			g.Directors = append(g.Directors, c)
		case model.RoleWriter:
			g.Writers = append(g.Writers, c)
		case model.RoleCast:
			g.Cast = append(g.Cast, c)
		}
	}
	byID := func(list []model.Credit) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	byID(g.Directors)
	byID(g.Writers)
	byID(g.Cast)
	sort.SliceStable(g.Cast, func(i, j int) bool {
		a, b := g.Cast[i].CastOrder, g.Cast[j].CastOrder
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
	return g
}

// LinkInput 新增关联的参数
type LinkInput struct {
	MovieID   int
	PersonID  int
	Role      model.Role
	CastOrder *int
}

// Link 新增关联；同一 (movie, role, person) 已存在时返回 Conflict
func (s *CreditService) Link(ctx context.Context, ownerID int, in LinkInput) (*model.Credit, error) {
	var credit *model.Credit
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Movie.Get(ctx, ownerID, in.MovieID); err != nil {
			return err
		}
		person, err := tx.Person.Get(ctx, ownerID, in.PersonID)
		if err != nil {
			return err
		}
		if person.IsTombstone() {
			return apperr.InvalidArgument("人物 %d 已被合并，不能作为关联目标", person.ID)
		}
		credit, err = linkCredit(ctx, tx, in.MovieID, person, in.Role, in.CastOrder)
		return err
	})
	return credit, err
}

// LinkByName 按名称查找（无外部 ID 的同名活跃人物）或新建人物后关联
func (s *CreditService) LinkByName(ctx context.Context, ownerID, movieID int, role model.Role, name string, castOrder *int) (*model.Credit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("人物名称不能为空")
	}
	var credit *model.Credit
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Movie.Get(ctx, ownerID, movieID); err != nil {
			return err
		}
		person, err := tx.Person.FindActiveByName(ctx, ownerID, name)
		if err != nil {
			return err
		}
		if person == nil {
			if person, err = tx.Person.Create(ctx, ownerID, nil, name); err != nil {
				return err
			}
		}
		credit, err = linkCredit(ctx, tx, movieID, person, role, castOrder)
		return err
	})
	return credit, err
}

// linkCredit 先查后写，保证 (movie, role, person) 唯一
func linkCredit(ctx context.Context, tx *repository.Repositories, movieID int, person *model.Person, role model.Role, castOrder *int) (*model.Credit, error) {
	if !role.Valid() {
		return nil, apperr.InvalidArgument("未知角色: %s", role)
	}
	if castOrder != nil && role != model.RoleCast {
		return nil, apperr.InvalidArgument("只有演员可以设置顺序")
	}
	exists, err := tx.Credit.Exists(ctx, movieID, role, person.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("%s 已是该电影的%s", person.DisplayName, roleLabel(role))
	}
	credit := &model.Credit{
		MovieID:   movieID,
		PersonID:  person.ID,
		Role:      role,
		CastOrder: castOrder,
		Person:    person,
	}
	if err := tx.Credit.Create(ctx, credit); err != nil {
		return nil, err
	}
	return credit, nil
}

// linkOrSkip 导入/刷新路径：已存在视为跳过
func linkOrSkip(ctx context.Context, tx *repository.Repositories, movieID int, person *model.Person, role model.Role, castOrder *int) (bool, error) {
	_, err := linkCredit(ctx, tx, movieID, person, role, castOrder)
	if errors.Is(err, apperr.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}

// Unlink 删除单条关联
func (s *CreditService) Unlink(ctx context.Context, ownerID, creditID int) error {
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		credit, err := tx.Credit.Get(ctx, creditID)
		if err != nil {
			return err
		}
		if _, err := tx.Movie.Get(ctx, ownerID, credit.MovieID); err != nil {
			return apperr.NotFound("参与记录不存在")
		}
		return tx.Credit.Delete(ctx, creditID)
	})
}

// UnlinkAll 清除电影某角色（role 为 nil 时全部）的关联
func (s *CreditService) UnlinkAll(ctx context.Context, ownerID, movieID int, role *model.Role) error {
	if role != nil && !role.Valid() {
		return apperr.InvalidArgument("未知角色: %s", *role)
	}
	if _, err := s.repos.Movie.Get(ctx, ownerID, movieID); err != nil {
		return err
	}
	return s.repos.Credit.DeleteByMovie(ctx, movieID, role)
}

// Relink 把关联指向另一人物；若会与现有关联冲突则返回 Conflict，不做去重
func (s *CreditService) Relink(ctx context.Context, ownerID, creditID, newPersonID int) error {
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		credit, err := tx.Credit.Get(ctx, creditID)
		if err != nil {
			return err
		}
		if _, err := tx.Movie.Get(ctx, ownerID, credit.MovieID); err != nil {
			return apperr.NotFound("参与记录不存在")
		}
		person, err := tx.Person.Get(ctx, ownerID, newPersonID)
		if err != nil {
			return err
		}
		if person.IsTombstone() {
			return apperr.InvalidArgument("人物 %d 已被合并，不能作为关联目标", person.ID)
		}
		if credit.PersonID == newPersonID {
			return nil
		}
		exists, err := tx.Credit.Exists(ctx, credit.MovieID, credit.Role, newPersonID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("%s 已是该电影的%s", person.DisplayName, roleLabel(credit.Role))
		}
		return tx.Credit.UpdatePerson(ctx, creditID, newPersonID)
	})
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleDirector:
		return "导演"
	case model.RoleWriter:
		return "编剧"
	case model.RoleCast:
		return "演员"
	}
	return string(role)
}
