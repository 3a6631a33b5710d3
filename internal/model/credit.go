package model

import (
	"time"
)

// Role 参与角色
type Role string

const (
	RoleDirector Role = "director"
	RoleWriter   Role = "writer"
	RoleCast     Role = "cast"
)

// Roles 所有角色，顺序即展示顺序
var Roles = []Role{RoleDirector, RoleWriter, RoleCast}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleDirector, RoleWriter, RoleCast:
		return true
	}
	return false
}

// Credit 电影-人物-角色关联
// (movie_id, role, person_id) 为自然键，同一组合最多一条
type Credit struct {
	ID        int       `json:"id" db:"id"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"uniqueIndex:idx_credit_natural_key;not null"`
	Role      Role      `json:"role" db:"role" gorm:"uniqueIndex:idx_credit_natural_key;type:varchar(16);not null"`
	PersonID  int       `json:"person_id" db:"person_id" gorm:"uniqueIndex:idx_credit_natural_key;index;not null"`
	CastOrder *int      `json:"cast_order" db:"cast_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Person    *Person   `json:"person,omitempty" gorm:"foreignKey:PersonID"`
}

// CreditGroups 按角色分组后的参与记录
type CreditGroups struct {
	Directors []Credit `json:"directors"`
	Writers   []Credit `json:"writers"`
	Cast      []Credit `json:"cast"`
}

// ByRole 取某角色的列表
func (g *CreditGroups) ByRole(role Role) []Credit {
	switch role {
	case RoleDirector:
		return g.Directors
	case RoleWriter:
		return g.Writers
	case RoleCast:
		return g.Cast
	}
	return nil
}

// Names 按当前顺序取人物显示名
func Names(credits []Credit) []string {
	names := make([]string, 0, len(credits))
	for _, c := range credits {
		if c.Person != nil {
			names = append(names, c.Person.DisplayName)
		}
	}
	return names
}
