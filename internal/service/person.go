package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// maxMergeDepth 追踪合并链的最大深度
const maxMergeDepth = 16

// PersonService 人物身份存储
type PersonService struct {
	repos *repository.Repositories
}

func NewPersonService(repos *repository.Repositories) *PersonService {
	return &PersonService{repos: repos}
}

// DuplicateGroup 共用同一外部 ID 的活跃人物
type DuplicateGroup struct {
	ExternalID int                 `json:"external_id"`
	Persons    []model.PersonUsage `json:"persons"`
}

// FindByExternalID 按 (owner, external_id) 查找；若只命中墓碑则沿合并链找到存活人物
func (s *PersonService) FindByExternalID(ctx context.Context, ownerID, externalID int) (*model.Person, error) {
	return findByExternalID(ctx, s.repos, ownerID, externalID)
}

func findByExternalID(ctx context.Context, repos *repository.Repositories, ownerID, externalID int) (*model.Person, error) {
	person, err := repos.Person.FindByExternalID(ctx, ownerID, externalID)
	if err != nil || person == nil {
		return person, err
	}
	return followMerges(ctx, repos, person)
}

// followMerges 沿 merged_into 链找到存活人物
// 合并目标已不存在时清除该墓碑标记，墓碑恢复为活跃人物
func followMerges(ctx context.Context, repos *repository.Repositories, person *model.Person) (*model.Person, error) {
	for depth := 0; person.IsTombstone(); depth++ {
		if depth >= maxMergeDepth {
			return nil, apperr.InvalidArgument("人物 %d 的合并链过长", person.ID)
		}
		next, err := repos.Person.Get(ctx, person.OwnerID, *person.MergedInto)
		if errors.Is(err, apperr.ErrNotFound) {
			if err := repos.Person.ClearMergedInto(ctx, person.OwnerID, person.ID); err != nil {
				return nil, err
			}
			logging.Warn().Int("person_id", person.ID).Int("merged_into", *person.MergedInto).
				Msg("[Person] 合并目标不存在，已恢复墓碑人物")
			person.MergedInto = nil
			return person, nil
		}
		if err != nil {
			return nil, err
		}
		person = next
	}
	return person, nil
}

// Create 创建人物
func (s *PersonService) Create(ctx context.Context, ownerID int, externalID *int, displayName string) (*model.Person, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, apperr.InvalidArgument("人物名称不能为空")
	}
	return s.repos.Person.Create(ctx, ownerID, externalID, name)
}

// Rename 修改显示名
func (s *PersonService) Rename(ctx context.Context, ownerID, id int, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return apperr.InvalidArgument("人物名称不能为空")
	}
	return s.repos.Person.Rename(ctx, ownerID, id, name)
}

// Get 人物详情及其参与记录
func (s *PersonService) Get(ctx context.Context, ownerID, id int) (*model.PersonDetail, error) {
	person, err := s.repos.Person.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	credits, err := s.repos.Credit.ListByPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.PersonDetail{Person: *person, Credits: credits}, nil
}

// ListActive 列出活跃人物及使用情况
func (s *PersonService) ListActive(ctx context.Context, ownerID int) ([]model.PersonUsage, error) {
	persons, err := s.repos.Person.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Credit.CountByPersonRole(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return withUsage(persons, counts), nil
}

// withUsage 把按角色的计数合并到人物上，角色按固定顺序输出
func withUsage(persons []model.Person, counts []repository.RoleCount) []model.PersonUsage {
	byPerson := make(map[int]map[model.Role]int)
	for _, c := range counts {
		if byPerson[c.PersonID] == nil {
			byPerson[c.PersonID] = make(map[model.Role]int)
		}
		byPerson[c.PersonID][c.Role] += c.Count
	}

	res := make([]model.PersonUsage, 0, len(persons))
	for _, p := range persons {
		u := model.PersonUsage{Person: p, Roles: []model.Role{}}
		for _, role := range model.Roles {
			if n := byPerson[p.ID][role]; n > 0 {
				u.CreditCount += n
				u.Roles = append(u.Roles, role)
			}
		}
		res = append(res, u)
	}
	return res
}

// MergeCandidates 合并目标候选：活跃人物中排除源人物本身
func (s *PersonService) MergeCandidates(ctx context.Context, ownerID, sourceID int) ([]model.PersonUsage, error) {
	if _, err := s.repos.Person.Get(ctx, ownerID, sourceID); err != nil {
		return nil, err
	}
	all, err := s.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	res := make([]model.PersonUsage, 0, len(all))
	for _, p := range all {
		if p.ID != sourceID {
			res = append(res, p)
		}
	}
	return res, nil
}

// DeleteUnused 删除没有参与记录的活跃人物，返回删除数
func (s *PersonService) DeleteUnused(ctx context.Context, ownerID int) (int64, error) {
	return s.repos.Person.DeleteUnused(ctx, ownerID)
}

// DuplicateGroups 按外部 ID 找出疑似重复的人物
func (s *PersonService) DuplicateGroups(ctx context.Context, ownerID int) ([]DuplicateGroup, error) {
	ids, err := s.repos.Person.DuplicateExternalIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	persons, err := s.repos.Person.ListActiveByExternalIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Credit.CountByPersonRole(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	groups := make(map[int]*DuplicateGroup)
	for _, u := range withUsage(persons, counts) {
		ext := *u.ExternalID
		if groups[ext] == nil {
			groups[ext] = &DuplicateGroup{ExternalID: ext}
		}
		groups[ext].Persons = append(groups[ext].Persons, u)
	}

	res := make([]DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		res = append(res, *g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExternalID < res[j].ExternalID })
	return res, nil
}

// resolvePerson 把外部演职员映射为人物：按外部 ID 复用，否则新建
// rename 为 true 时，若新抓取的显示名不同则更新（刷新路径视新名称为更权威）
func resolvePerson(ctx context.Context, tx *repository.Repositories, ownerID int, p model.CatalogPerson, rename bool) (*model.Person, error) {
	name := pick(strings.TrimSpace(p.DisplayName), strings.TrimSpace(p.Name))
	if name == "" {
		return nil, apperr.InvalidArgument("外部人物 %d 缺少名称", p.ExternalID)
	}

	person, err := findByExternalID(ctx, tx, ownerID, p.ExternalID)
	if err != nil {
		return nil, err
	}
	if person == nil {
		ext := p.ExternalID
		return tx.Person.Create(ctx, ownerID, &ext, name)
	}

	sameIdentity := person.ExternalID != nil && *person.ExternalID == p.ExternalID
	if rename && sameIdentity && person.DisplayName != name {
		if err := tx.Person.Rename(ctx, ownerID, person.ID, name); err != nil {
			return nil, err
		}
		person.DisplayName = name
	}
	return person, nil
}
