package model

// CatalogSearchResult 外部目录搜索结果条目
type CatalogSearchResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	PosterPath    string  `json:"poster_path"`
	ReleaseDate   string  `json:"release_date"`
	Overview      string  `json:"overview"`
	VoteAverage   float64 `json:"vote_average"`
}

// CatalogSearchPage 搜索分页结果
type CatalogSearchPage struct {
	Results      []CatalogSearchResult `json:"results"`
	Page         int                   `json:"page"`
	TotalPages   int                   `json:"total_pages"`
	TotalResults int                   `json:"total_results"`
}

// CatalogMovieDetails 电影详情
type CatalogMovieDetails struct {
	ID                  int       `json:"id"`
	Title               string    `json:"title"`
	OriginalTitle       string    `json:"original_title"`
	PosterPath          string    `json:"poster_path"`
	ReleaseDate         string    `json:"release_date"`
	Runtime             int       `json:"runtime"`
	Overview            string    `json:"overview"`
	ProductionCountries []Country `json:"production_countries"`
}

// CatalogCastMember 演员条目
type CatalogCastMember struct {
	ExternalID  int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
}

// CatalogCrewMember 职员条目
type CatalogCrewMember struct {
	ExternalID  int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Job         string `json:"job"`
	Department  string `json:"department"`
}

// CatalogCredits 原始演职员表
type CatalogCredits struct {
	Cast []CatalogCastMember `json:"cast"`
	Crew []CatalogCrewMember `json:"crew"`
}

// CatalogPersonDetails 人物详情
type CatalogPersonDetails struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	AlsoKnownAs []string `json:"also_known_as"`
}

// CatalogPerson 归一化后的演职员（已解析显示名）
type CatalogPerson struct {
	ExternalID  int    `json:"external_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Order       *int   `json:"order,omitempty"`
}

// CatalogMovie 一次完整抓取：详情 + 归一化演职员
type CatalogMovie struct {
	Details   CatalogMovieDetails `json:"details"`
	Directors []CatalogPerson     `json:"directors"`
	Writers   []CatalogPerson     `json:"writers"`
	Cast      []CatalogPerson     `json:"cast"`
}

// PeopleFor 按角色取归一化人物列表
func (m *CatalogMovie) PeopleFor(role Role) []CatalogPerson {
	switch role {
	case RoleDirector:
		return m.Directors
	case RoleWriter:
		return m.Writers
	case RoleCast:
		return m.Cast
	}
	return nil
}

// DisplayNames 取显示名序列
func DisplayNames(people []CatalogPerson) []string {
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.DisplayName)
	}
	return names
}
