package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/config"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/metrics"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// maxWriters 编剧只保留外部返回顺序中的前 5 位
	maxWriters = 5
	// nameLookupChunk 人物显示名解析每批并发数
	nameLookupChunk = 10

	searchCacheTTL = 5 * time.Minute
	movieCacheTTL  = 2 * time.Minute
	nameCacheTTL   = 24 * time.Hour
	nameCacheSize  = 4096
)

// errCatalogNotFound 外部目录返回 404，不计入熔断失败
var errCatalogNotFound = errors.New("catalog: not found")

// TMDBService 外部影片目录客户端
type TMDBService struct {
	baseURL  string
	token    string
	language string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	names    *utils.TTLCache[int, string]
	scripts  []*unicode.RangeTable
	group    singleflight.Group
	log      zerolog.Logger
}

func NewTMDBService(cfg *config.Config) *TMDBService {
	log := logging.Component("tmdb")
	return &TMDBService{
		baseURL:  cfg.TMDBBaseURL,
		token:    cfg.TMDBToken,
		language: cfg.TMDBLanguage,
		client:   &http.Client{Timeout: cfg.CatalogTimeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "tmdb",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errCatalogNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("[TMDB] 熔断器状态变化")
			},
		}),
		names:   utils.NewTTLCache[int, string](nameCacheSize, nameCacheTTL),
		scripts: scriptsFor(cfg.TMDBLanguage),
		log:     log,
	}
}

// scriptsFor 根据语言决定本地化名称的文字范围
func scriptsFor(language string) []*unicode.RangeTable {
	switch strings.ToLower(strings.SplitN(language, "-", 2)[0]) {
	case "ja":
		return []*unicode.RangeTable{unicode.Hiragana, unicode.Katakana, unicode.Han}
	case "zh":
		return []*unicode.RangeTable{unicode.Han}
	case "ko":
		return []*unicode.RangeTable{unicode.Hangul}
	}
	return nil
}

// get 发送 GET 请求并解析 JSON，所有失败都转换为 UpstreamUnavailable（404 为 NotFound）
func (s *TMDBService) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	start := time.Now()
	body, err := s.breaker.Execute(func() ([]byte, error) {
		return s.do(ctx, path, query)
	})
	metrics.CatalogLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, errCatalogNotFound) {
			metrics.CatalogRequests.WithLabelValues(endpoint, "not_found").Inc()
			return apperr.NotFound("外部目录中不存在该条目")
		}
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		return apperr.Upstream(err, "请求外部目录失败 (%s)", endpoint)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "malformed").Inc()
		return apperr.Upstream(err, "外部目录返回数据格式错误 (%s)", endpoint)
	}
	metrics.CatalogRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func (s *TMDBService) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if s.language != "" {
		query.Set("language", s.language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errCatalogNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Search 搜索电影
func (s *TMDBService) Search(ctx context.Context, query string, page int) (*model.CatalogSearchPage, error) {
	if page < 1 {
		page = 1
	}
	cacheKey := fmt.Sprintf("catalog:search:%s:%d", query, page)
	if cached, found := utils.CacheGet(cacheKey); found {
		if res, ok := cached.(*model.CatalogSearchPage); ok {
			return res, nil
		}
	}

	var res model.CatalogSearchPage
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	if err := s.get(ctx, "search", "/search/movie", q, &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		res.Results = []model.CatalogSearchResult{}
	}

	utils.CacheSet(cacheKey, &res, searchCacheTTL)
	return &res, nil
}

type tmdbMovieResponse struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	OriginalTitle       string `json:"original_title"`
	PosterPath          string `json:"poster_path"`
	ReleaseDate         string `json:"release_date"`
	Runtime             int    `json:"runtime"`
	Overview            string `json:"overview"`
	ProductionCountries []struct {
		Code string `json:"iso_3166_1"`
		Name string `json:"name"`
	} `json:"production_countries"`
}

// MovieDetails 电影详情
func (s *TMDBService) MovieDetails(ctx context.Context, id int) (*model.CatalogMovieDetails, error) {
	var res tmdbMovieResponse
	if err := s.get(ctx, "movie", fmt.Sprintf("/movie/%d", id), nil, &res); err != nil {
		return nil, err
	}
	details := &model.CatalogMovieDetails{
		ID:                  res.ID,
		Title:               res.Title,
		OriginalTitle:       res.OriginalTitle,
		PosterPath:          res.PosterPath,
		ReleaseDate:         res.ReleaseDate,
		Runtime:             res.Runtime,
		Overview:            res.Overview,
		ProductionCountries: make([]model.Country, 0, len(res.ProductionCountries)),
	}
	for _, c := range res.ProductionCountries {
		details.ProductionCountries = append(details.ProductionCountries, model.Country{Code: c.Code, Name: c.Name})
	}
	return details, nil
}

// MovieCredits 原始演职员表
func (s *TMDBService) MovieCredits(ctx context.Context, id int) (*model.CatalogCredits, error) {
	var res model.CatalogCredits
	if err := s.get(ctx, "credits", fmt.Sprintf("/movie/%d/credits", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PersonDetails 人物详情
func (s *TMDBService) PersonDetails(ctx context.Context, id int) (*model.CatalogPersonDetails, error) {
	var res model.CatalogPersonDetails
	if err := s.get(ctx, "person", fmt.Sprintf("/person/%d", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// catalogBundle 一次抓取的详情与已标注显示名的演职员表
type catalogBundle struct {
	details *model.CatalogMovieDetails
	credits *model.CatalogCredits
}

// FetchMovie 获取详情与归一化后的演职员，短时间内命中缓存
func (s *TMDBService) FetchMovie(ctx context.Context, id int) (*model.CatalogMovie, error) {
	b, err := s.fetchBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	return normalizedMovie(b), nil
}

// FetchMovieFresh 丢弃缓存后重新抓取，刷新比对使用
func (s *TMDBService) FetchMovieFresh(ctx context.Context, id int) (*model.CatalogMovie, error) {
	utils.CacheDelete(movieCacheKey(id))
	return s.FetchMovie(ctx, id)
}

func movieCacheKey(id int) string {
	return fmt.Sprintf("catalog:movie:%d", id)
}

func normalizedMovie(b *catalogBundle) *model.CatalogMovie {
	directors, writers, cast := NormalizeCredits(b.credits)
	return &model.CatalogMovie{
		Details:   *b.details,
		Directors: directors,
		Writers:   writers,
		Cast:      cast,
	}
}

func (s *TMDBService) fetchBundle(ctx context.Context, id int) (*catalogBundle, error) {
	cacheKey := movieCacheKey(id)
	if cached, found := utils.CacheGet(cacheKey); found {
		if b, ok := cached.(*catalogBundle); ok {
			return b, nil
		}
	}

	// 使用 singleflight 避免并发重复抓取；共享的抓取不随首个调用方取消，超时由 http.Client 控制
	val, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		b := &catalogBundle{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			d, err := s.MovieDetails(gctx, id)
			b.details = d
			return err
		})
		g.Go(func() error {
			c, err := s.MovieCredits(gctx, id)
			b.credits = c
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		s.annotateDisplayNames(ctx, b.credits)
		utils.CacheSet(cacheKey, b, movieCacheTTL)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*catalogBundle), nil
}

// annotateDisplayNames 为演员及导演/编剧解析显示名，其他职员沿用原名
// 每批 nameLookupChunk 个并发请求；单个人物查询失败时回退到原名
func (s *TMDBService) annotateDisplayNames(ctx context.Context, credits *model.CatalogCredits) {
	var ids []int
	seen := make(map[int]bool)
	fallback := make(map[int]string)
	add := func(id int, name string) {
		if seen[id] {
			return
		}
		seen[id] = true
		fallback[id] = name
		ids = append(ids, id)
	}
	for _, c := range credits.Cast {
		add(c.ExternalID, c.Name)
	}
	for _, c := range credits.Crew {
		if _, ok := crewRole(c.Job); ok {
			add(c.ExternalID, c.Name)
		}
	}

	resolved := make(map[int]string, len(ids))
	var mu sync.Mutex
	for start := 0; start < len(ids); start += nameLookupChunk {
		end := start + nameLookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		var g errgroup.Group
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				name := s.localizedName(ctx, id, fallback[id])
				mu.Lock()
				resolved[id] = name
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	for i := range credits.Cast {
		credits.Cast[i].DisplayName = pick(resolved[credits.Cast[i].ExternalID], credits.Cast[i].Name)
	}
	for i := range credits.Crew {
		credits.Crew[i].DisplayName = pick(resolved[credits.Crew[i].ExternalID], credits.Crew[i].Name)
	}
}

func (s *TMDBService) localizedName(ctx context.Context, id int, fallback string) string {
	if name, ok := s.names.Get(id); ok {
		return name
	}
	details, err := s.PersonDetails(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Int("person_id", id).Msg("[TMDB] 获取人物详情失败，使用原名")
		return fallback
	}
	name := LocalizedName(details, s.scripts)
	if name == "" {
		name = fallback
	}
	s.names.Set(id, name)
	return name
}

// LocalizedName 在别名中找第一个包含目标文字的名称，找不到时使用 name
func LocalizedName(details *model.CatalogPersonDetails, scripts []*unicode.RangeTable) string {
	if len(scripts) > 0 {
		for _, alias := range details.AlsoKnownAs {
			for _, r := range alias {
				if unicode.In(r, scripts...) {
					return strings.TrimSpace(alias)
				}
			}
		}
	}
	return details.Name
}

// crewRole 职员 job 到角色的映射
func crewRole(job string) (model.Role, bool) {
	switch job {
	case "Director":
		return model.RoleDirector, true
	case "Writer", "Screenplay":
		return model.RoleWriter, true
	}
	return "", false
}

// NormalizeCredits 把原始演职员表归一化为导演、编剧（最多 5 位）、演员（按 order 升序，按人去重）
func NormalizeCredits(credits *model.CatalogCredits) (directors, writers, cast []model.CatalogPerson) {
	directors = []model.CatalogPerson{}
	writers = []model.CatalogPerson{}
	cast = []model.CatalogPerson{}
	if credits == nil {
		return
	}

	seen := map[model.Role]map[int]bool{
		model.RoleDirector: {},
		model.RoleWriter:   {},
	}
	for _, c := range credits.Crew {
		role, ok := crewRole(c.Job)
		if !ok || seen[role][c.ExternalID] {
			continue
		}
		seen[role][c.ExternalID] = true
		p := model.CatalogPerson{ExternalID: c.ExternalID, Name: c.Name, DisplayName: pick(c.DisplayName, c.Name)}
		if role == model.RoleDirector {
			directors = append(directors, p)
		} else if len(writers) < maxWriters {
			writers = append(writers, p)
		}
	}

	members := append([]model.CatalogCastMember(nil), credits.Cast...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Order < members[j].Order })
	// 同一演员饰演多个角色时只保留 order 最小的一条
	seenCast := make(map[int]bool, len(members))
	for _, c := range members {
		if seenCast[c.ExternalID] {
			continue
		}
		seenCast[c.ExternalID] = true
		order := c.Order
		cast = append(cast, model.CatalogPerson{
			ExternalID:  c.ExternalID,
			Name:        c.Name,
			DisplayName: pick(c.DisplayName, c.Name),
			Order:       &order,
		})
	}
	return
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
