package model

import (
	"time"
)

// WatchLog 观影记录
type WatchLog struct {
	ID        int       `json:"id" db:"id"`
	OwnerID   int       `json:"owner_id" db:"owner_id" gorm:"index;not null"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"index;not null"`
	WatchedAt time.Time `json:"watched_at" db:"watched_at" gorm:"index"`
	Score     *int      `json:"score" db:"score"` // 1-10
	Note      string    `json:"note" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Tag 用户自定义标签
type Tag struct {
	ID        int       `json:"id" db:"id"`
	OwnerID   int       `json:"owner_id" db:"owner_id" gorm:"uniqueIndex:idx_tag_owner_name;not null"`
	Name      string    `json:"name" db:"name" gorm:"uniqueIndex:idx_tag_owner_name;not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MovieTag 电影-标签关联
type MovieTag struct {
	MovieID int `json:"movie_id" db:"movie_id" gorm:"primaryKey"`
	TagID   int `json:"tag_id" db:"tag_id" gorm:"primaryKey"`
}

// TagUsage 标签及使用次数
type TagUsage struct {
	Tag
	MovieCount int `json:"movie_count"`
}
