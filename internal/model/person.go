package model

import (
	"time"
)

// Person 人物（导演/编剧/演员），按用户隔离
// MergedInto 非空表示已被合并（墓碑），不可作为新的关联目标，也不出现在列表中
type Person struct {
	ID          int       `json:"id" db:"id"`
	OwnerID     int       `json:"owner_id" db:"owner_id" gorm:"index:idx_person_owner_external;not null"`
	ExternalID  *int      `json:"external_id" db:"external_id" gorm:"index:idx_person_owner_external"`
	DisplayName string    `json:"display_name" db:"display_name" gorm:"not null"`
	MergedInto  *int      `json:"merged_into" db:"merged_into" gorm:"index"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// IsTombstone 是否已被合并
func (p *Person) IsTombstone() bool {
	return p.MergedInto != nil
}

// PersonUsage 人物及其使用情况
type PersonUsage struct {
	Person
	CreditCount int    `json:"credit_count"`
	Roles       []Role `json:"roles"`
}

// PersonDetail 人物详情（含全部参与记录）
type PersonDetail struct {
	Person
	Credits []Credit `json:"credits"`
}

// TableName 显式表名，避免 gorm 复数化为 people
func (Person) TableName() string {
	return "persons"
}
