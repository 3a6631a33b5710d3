package model

import (
	"time"
)

// UnknownValue 快照与覆盖值都缺失时的显示值
const UnknownValue = "unknown"

// Country 制片国家/地区
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// MovieSnapshot 从外部目录抓取并缓存的字段
type MovieSnapshot struct {
	Title               string    `json:"title"`
	PosterPath          string    `json:"poster_path"`
	ReleaseDate         string    `json:"release_date"`
	ProductionCountries []Country `json:"production_countries" gorm:"serializer:json"`
}

// MovieOverrides 用户手动设置的值，存在时遮蔽快照值
type MovieOverrides struct {
	Title               *string   `json:"title,omitempty"`
	PosterPath          *string   `json:"poster_path,omitempty"`
	ReleaseDate         *string   `json:"release_date,omitempty"`
	ProductionCountries []Country `json:"production_countries,omitempty" gorm:"serializer:json"`
}

// Movie 用户收藏中的电影
type Movie struct {
	ID         int            `json:"id" db:"id"`
	OwnerID    int            `json:"owner_id" db:"owner_id" gorm:"index;not null"`
	ExternalID *int           `json:"external_id" db:"external_id" gorm:"index"`
	Snapshot   MovieSnapshot  `json:"snapshot" gorm:"embedded;embeddedPrefix:snapshot_"`
	Overrides  MovieOverrides `json:"overrides" gorm:"embedded;embeddedPrefix:override_"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Title 生效标题：覆盖值 > 快照值 > unknown
func (m *Movie) Title() string {
	return effective(m.Overrides.Title, m.Snapshot.Title)
}

func (m *Movie) PosterPath() string {
	return effective(m.Overrides.PosterPath, m.Snapshot.PosterPath)
}

func (m *Movie) ReleaseDate() string {
	return effective(m.Overrides.ReleaseDate, m.Snapshot.ReleaseDate)
}

// ProductionCountries 覆盖列表非 nil 时生效（空列表也算覆盖）
func (m *Movie) ProductionCountries() []Country {
	if m.Overrides.ProductionCountries != nil {
		return m.Overrides.ProductionCountries
	}
	return m.Snapshot.ProductionCountries
}

// Year 取生效上映日期的年份，未知返回空串
func (m *Movie) Year() string {
	d := m.ReleaseDate()
	if d == UnknownValue || len(d) < 4 {
		return ""
	}
	return d[:4]
}

func effective(override *string, snapshot string) string {
	if override != nil && *override != "" {
		return *override
	}
	if snapshot != "" {
		return snapshot
	}
	return UnknownValue
}

// MovieView 接口返回的电影（带生效字段）
type MovieView struct {
	*Movie
	EffectiveTitle       string    `json:"effective_title"`
	EffectivePosterPath  string    `json:"effective_poster_path"`
	EffectiveReleaseDate string    `json:"effective_release_date"`
	EffectiveCountries   []Country `json:"effective_production_countries"`
}

// View 生成 MovieView
func (m *Movie) View() MovieView {
	return MovieView{
		Movie:                m,
		EffectiveTitle:       m.Title(),
		EffectivePosterPath:  m.PosterPath(),
		EffectiveReleaseDate: m.ReleaseDate(),
		EffectiveCountries:   m.ProductionCountries(),
	}
}
