package service

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/metrics"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// MovieCatalog 外部目录抓取接口，TMDBService 实现
type MovieCatalog interface {
	FetchMovie(ctx context.Context, externalID int) (*model.CatalogMovie, error)
}

// RefreshField 可刷新的字段
type RefreshField string

const (
	FieldTitle       RefreshField = "title"
	FieldReleaseDate RefreshField = "release_date"
	FieldPosterPath  RefreshField = "poster_path"
	FieldCountries   RefreshField = "production_countries"
	FieldDirectors   RefreshField = "directors"
	FieldWriters     RefreshField = "writers"
	FieldCast        RefreshField = "cast"
)

// RefreshFields 全部字段，顺序即差异展示与应用顺序
var RefreshFields = []RefreshField{
	FieldTitle, FieldReleaseDate, FieldPosterPath, FieldCountries,
	FieldDirectors, FieldWriters, FieldCast,
}

// Valid 是否为已知字段
func (f RefreshField) Valid() bool {
	for _, k := range RefreshFields {
		if k == f {
			return true
		}
	}
	return false
}

// creditRole 字段对应的参与角色；非演职员字段返回 false
func (f RefreshField) creditRole() (model.Role, bool) {
	switch f {
	case FieldDirectors:
		return model.RoleDirector, true
	case FieldWriters:
		return model.RoleWriter, true
	case FieldCast:
		return model.RoleCast, true
	}
	return "", false
}

// FieldDiff 单个字段的差异
type FieldDiff struct {
	Field   RefreshField `json:"field"`
	Stored  interface{}  `json:"stored"`
	Fetched interface{}  `json:"fetched"`
	Changed bool         `json:"changed"`
}

// RefreshDiff 一部电影的逐字段差异
type RefreshDiff struct {
	MovieID    int         `json:"movie_id"`
	ExternalID int         `json:"external_id"`
	Fields     []FieldDiff `json:"fields"`
}

// ChangedFields 有变化的字段
func (d *RefreshDiff) ChangedFields() []RefreshField {
	var res []RefreshField
	for _, f := range d.Fields {
		if f.Changed {
			res = append(res, f.Field)
		}
	}
	return res
}

// HasChanges 是否存在任一变化
func (d *RefreshDiff) HasChanges() bool {
	return len(d.ChangedFields()) > 0
}

// ApplyResult 应用结果
type ApplyResult struct {
	MovieID int            `json:"movie_id"`
	Applied []RefreshField `json:"applied"`
}

// BulkError 批量刷新中单部电影的失败
type BulkError struct {
	MovieID int    `json:"movie_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BulkReport 批量刷新报告
type BulkReport struct {
	Total     int         `json:"total"`
	Updated   int         `json:"updated"`
	Unchanged int         `json:"unchanged"`
	Failed    int         `json:"failed"`
	Cancelled bool        `json:"cancelled"`
	Errors    []BulkError `json:"errors"`
}

// RefreshService 将快照与演职员和外部目录重新对齐
type RefreshService struct {
	repos   *repository.Repositories
	catalog MovieCatalog
	delay   time.Duration
}

func NewRefreshService(repos *repository.Repositories, catalog MovieCatalog, delay time.Duration) *RefreshService {
	return &RefreshService{repos: repos, catalog: catalog, delay: delay}
}

// Diff 计算单部电影的差异，不修改任何数据
func (s *RefreshService) Diff(ctx context.Context, ownerID, movieID int) (*RefreshDiff, error) {
	movie, err := s.refreshable(ctx, ownerID, movieID)
	if err != nil {
		return nil, err
	}
	diff, _, err := s.diffMovie(ctx, movie)
	return diff, err
}

func (s *RefreshService) refreshable(ctx context.Context, ownerID, movieID int) (*model.Movie, error) {
	movie, err := s.repos.Movie.Get(ctx, ownerID, movieID)
	if err != nil {
		return nil, err
	}
	if movie.ExternalID == nil {
		return nil, apperr.InvalidArgument("电影 %d 没有外部目录 ID，无法刷新", movieID)
	}
	return movie, nil
}

// freshCatalog 可绕过缓存抓取的目录客户端
type freshCatalog interface {
	FetchMovieFresh(ctx context.Context, id int) (*model.CatalogMovie, error)
}

// fetch 刷新总是与外部目录的当前数据比对，目录支持时绕过缓存
func (s *RefreshService) fetch(ctx context.Context, externalID int) (*model.CatalogMovie, error) {
	if fc, ok := s.catalog.(freshCatalog); ok {
		return fc.FetchMovieFresh(ctx, externalID)
	}
	return s.catalog.FetchMovie(ctx, externalID)
}

func (s *RefreshService) diffMovie(ctx context.Context, movie *model.Movie) (*RefreshDiff, *model.CatalogMovie, error) {
	fetched, err := s.fetch(ctx, *movie.ExternalID)
	if err != nil {
		return nil, nil, err
	}
	credits, err := s.repos.Credit.ListForMovie(ctx, movie.ID)
	if err != nil {
		return nil, nil, err
	}
	return ComputeDiff(movie, GroupCredits(credits), fetched), fetched, nil
}

// ComputeDiff 比较快照/演职员与抓取结果
// 标量逐字比较；国家按有序代码列表比较；导演/编剧按排序去重的名称集合比较；
// 演员在名称集合或顺序任一不同时视为变化
func ComputeDiff(movie *model.Movie, stored *model.CreditGroups, fetched *model.CatalogMovie) *RefreshDiff {
	diff := &RefreshDiff{MovieID: movie.ID}
	if movie.ExternalID != nil {
		diff.ExternalID = *movie.ExternalID
	}

	scalar := func(field RefreshField, have, want string) {
		diff.Fields = append(diff.Fields, FieldDiff{Field: field, Stored: have, Fetched: want, Changed: have != want})
	}
	scalar(FieldTitle, movie.Snapshot.Title, fetched.Details.Title)
	scalar(FieldReleaseDate, movie.Snapshot.ReleaseDate, fetched.Details.ReleaseDate)
	scalar(FieldPosterPath, movie.Snapshot.PosterPath, fetched.Details.PosterPath)

	have, want := countryCodes(movie.Snapshot.ProductionCountries), countryCodes(fetched.Details.ProductionCountries)
	diff.Fields = append(diff.Fields, FieldDiff{
		Field: FieldCountries, Stored: have, Fetched: want, Changed: !reflect.DeepEqual(have, want),
	})

	for _, field := range []RefreshField{FieldDirectors, FieldWriters, FieldCast} {
		role, _ := field.creditRole()
		have := model.Names(stored.ByRole(role))
		want := model.DisplayNames(fetched.PeopleFor(role))
		changed := !equalStrings(nameSet(have), nameSet(want))
		if role == model.RoleCast && !changed {
			changed = !equalStrings(have, want)
		}
		diff.Fields = append(diff.Fields, FieldDiff{Field: field, Stored: have, Fetched: want, Changed: changed})
	}
	return diff
}

func countryCodes(countries []model.Country) []string {
	codes := make([]string, 0, len(countries))
	for _, c := range countries {
		codes = append(codes, c.Code)
	}
	return codes
}

// nameSet 排序去重
func nameSet(names []string) []string {
	seen := make(map[string]bool, len(names))
	res := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			res = append(res, n)
		}
	}
	sort.Strings(res)
	return res
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Apply 重新抓取后应用选定字段
// 每个字段一个事务：字段内全有或全无，字段之间互不影响；失败字段汇总为 PartialFailure
func (s *RefreshService) Apply(ctx context.Context, ownerID, movieID int, fields []RefreshField) (*ApplyResult, error) {
	fields, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	movie, err := s.refreshable(ctx, ownerID, movieID)
	if err != nil {
		return nil, err
	}
	fetched, err := s.fetch(ctx, *movie.ExternalID)
	if err != nil {
		return nil, err
	}

	applied, items := s.applyFields(ctx, movie, fetched, fields)
	return &ApplyResult{MovieID: movieID, Applied: applied}, apperr.Partial("部分字段更新失败", items)
}

func normalizeFields(fields []RefreshField) ([]RefreshField, error) {
	if len(fields) == 0 {
		return nil, apperr.InvalidArgument("请选择要更新的字段")
	}
	seen := make(map[RefreshField]bool, len(fields))
	res := make([]RefreshField, 0, len(fields))
	for _, f := range fields {
		if !f.Valid() {
			return nil, apperr.InvalidArgument("未知字段: %s", f)
		}
		if !seen[f] {
			seen[f] = true
			res = append(res, f)
		}
	}
	return res, nil
}

func (s *RefreshService) applyFields(ctx context.Context, movie *model.Movie, fetched *model.CatalogMovie, fields []RefreshField) ([]RefreshField, []apperr.ItemError) {
	applied := []RefreshField{}
	var items []apperr.ItemError
	for _, field := range fields {
		err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			return applyField(ctx, tx, movie, fetched, field)
		})
		if err != nil {
			logging.Warn().Err(err).Int("movie_id", movie.ID).Str("field", string(field)).
				Msg("[Refresh] 字段更新失败")
			items = append(items, apperr.ItemError{Item: string(field), Message: err.Error()})
			continue
		}
		applied = append(applied, field)
	}
	return applied, items
}

func applyField(ctx context.Context, tx *repository.Repositories, movie *model.Movie, fetched *model.CatalogMovie, field RefreshField) error {
	if role, ok := field.creditRole(); ok {
		return replaceCredits(ctx, tx, movie, role, fetched.PeopleFor(role))
	}

	d := fetched.Details
	switch field {
	case FieldTitle:
		movie.Snapshot.Title = d.Title
		return tx.Movie.UpdateSnapshot(ctx, movie, repository.ColSnapshotTitle)
	case FieldReleaseDate:
		movie.Snapshot.ReleaseDate = d.ReleaseDate
		return tx.Movie.UpdateSnapshot(ctx, movie, repository.ColSnapshotReleaseDate)
	case FieldPosterPath:
		movie.Snapshot.PosterPath = d.PosterPath
		return tx.Movie.UpdateSnapshot(ctx, movie, repository.ColSnapshotPosterPath)
	case FieldCountries:
		countries := d.ProductionCountries
		if countries == nil {
			countries = []model.Country{}
		}
		movie.Snapshot.ProductionCountries = countries
		return tx.Movie.UpdateSnapshot(ctx, movie, repository.ColSnapshotCountries)
	}
	return apperr.InvalidArgument("未知字段: %s", field)
}

// replaceCredits 完全替换某角色的关联：先删后建，人物按外部 ID 解析，显示名不同则更新
func replaceCredits(ctx context.Context, tx *repository.Repositories, movie *model.Movie, role model.Role, people []model.CatalogPerson) error {
	if err := tx.Credit.DeleteByMovie(ctx, movie.ID, &role); err != nil {
		return err
	}
	for _, p := range people {
		person, err := resolvePerson(ctx, tx, movie.OwnerID, p, true)
		if err != nil {
			return err
		}
		var order *int
		if role == model.RoleCast {
			order = p.Order
		}
		if _, err := linkOrSkip(ctx, tx, movie.ID, person, role, order); err != nil {
			return err
		}
	}
	return nil
}

// RefreshAll 逐部刷新全部可刷新电影，每次抓取之间保持固定间隔
// 单部失败不影响其余电影，结束后统一报告；不做重试
func (s *RefreshService) RefreshAll(ctx context.Context, ownerID int) (*BulkReport, error) {
	movies, err := s.repos.Movie.ListRefreshable(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{Total: len(movies), Errors: []BulkError{}}
	limiter := rate.NewLimiter(rate.Every(s.delay), 1)

	for _, movie := range movies {
		if err := limiter.Wait(ctx); err != nil {
			report.Cancelled = true
			break
		}

		result, err := s.refreshOne(ctx, movie)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, BulkError{
				MovieID: movie.ID,
				Title:   movie.Title(),
				Message: err.Error(),
			})
			metrics.RefreshItems.WithLabelValues("failed").Inc()
			logging.Warn().Err(err).Int("movie_id", movie.ID).Msg("[Refresh] 批量刷新单项失败")
			continue
		}
		metrics.RefreshItems.WithLabelValues(result).Inc()
		if result == "updated" {
			report.Updated++
		} else {
			report.Unchanged++
		}
	}

	logging.Info().Int("owner_id", ownerID).Int("total", report.Total).Int("updated", report.Updated).
		Int("unchanged", report.Unchanged).Int("failed", report.Failed).Msg("[Refresh] 批量刷新完成")
	return report, nil
}

func (s *RefreshService) refreshOne(ctx context.Context, movie *model.Movie) (string, error) {
	diff, fetched, err := s.diffMovie(ctx, movie)
	if err != nil {
		return "", err
	}
	changed := diff.ChangedFields()
	if len(changed) == 0 {
		return "unchanged", nil
	}
	if _, items := s.applyFields(ctx, movie, fetched, changed); len(items) > 0 {
		return "", fmt.Errorf("部分字段更新失败: %s", apperr.Summary(items))
	}
	return "updated", nil
}
