package service

import (
	"context"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

// Dataset 统计所需的全部数据
type Dataset struct {
	Movies    []*model.Movie
	Logs      []model.WatchLog
	Credits   []model.Credit
	Persons   []model.Person
	Tags      []model.Tag
	MovieTags []model.MovieTag
}

// StatsFilter 统计过滤条件，Year 为 0 表示不限
type StatsFilter struct {
	Year int `form:"year"`
}

// Bucket 单个统计桶
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary 概览
type Summary struct {
	MovieCount   int     `json:"movie_count"`
	WatchCount   int     `json:"watch_count"`
	ScoredCount  int     `json:"scored_count"`
	AverageScore float64 `json:"average_score"`
}

// Stats 统计结果
type Stats struct {
	Filter     StatsFilter `json:"filter"`
	Summary    Summary     `json:"summary"`
	ByMonth    []Bucket    `json:"by_month"`
	ByScore    []Bucket    `json:"by_score"`
	ByCountry  []Bucket    `json:"by_country"`
	ByTag      []Bucket    `json:"by_tag"`
	ByDirector []Bucket    `json:"by_director"`
	ByCast     []Bucket    `json:"by_cast"`
}

// StatsService 观影统计
type StatsService struct {
	repos *repository.Repositories
}

func NewStatsService(repos *repository.Repositories) *StatsService {
	return &StatsService{repos: repos}
}

// Load 并发读取用户的统计数据
func (s *StatsService) Load(ctx context.Context, ownerID int) (*Dataset, error) {
	d := &Dataset{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Movies, err = s.repos.Movie.ListByOwner(gctx, ownerID)
		return
	})
	g.Go(func() (err error) {
		d.Logs, err = s.repos.WatchLog.ListByOwner(gctx, ownerID, 0)
		return
	})
	g.Go(func() (err error) {
		d.Credits, err = s.repos.Credit.ListByOwner(gctx, ownerID)
		return
	})
	g.Go(func() (err error) {
		d.Persons, err = s.repos.Person.ListAll(gctx, ownerID)
		return
	})
	g.Go(func() (err error) {
		d.Tags, err = s.repos.Tag.ListByOwner(gctx, ownerID)
		return
	})
	g.Go(func() (err error) {
		d.MovieTags, err = s.repos.Tag.ListLinksByOwner(gctx, ownerID)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Compute 读取数据并计算全部统计
func (s *StatsService) Compute(ctx context.Context, ownerID int, f StatsFilter) (*Stats, error) {
	d, err := s.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Filter:     f,
		Summary:    Summarize(d, f),
		ByMonth:    ByMonth(d, f),
		ByScore:    ByScore(d, f),
		ByCountry:  ByCountry(d, f),
		ByTag:      ByTag(d, f),
		ByDirector: ByPerson(d, f, model.RoleDirector),
		ByCast:     ByPerson(d, f, model.RoleCast),
	}, nil
}

// logsIn 按年份过滤观影记录
func logsIn(d *Dataset, f StatsFilter) []model.WatchLog {
	if f.Year == 0 {
		return d.Logs
	}
	var res []model.WatchLog
	for _, l := range d.Logs {
		if l.WatchedAt.Year() == f.Year {
			res = append(res, l)
		}
	}
	return res
}

// moviesIn 统计范围内的电影：不限年份时为全部收藏，否则为该年看过的电影
func moviesIn(d *Dataset, f StatsFilter) map[int]*model.Movie {
	all := make(map[int]*model.Movie, len(d.Movies))
	for _, m := range d.Movies {
		all[m.ID] = m
	}
	if f.Year == 0 {
		return all
	}
	res := make(map[int]*model.Movie)
	for _, l := range logsIn(d, f) {
		if m, ok := all[l.MovieID]; ok {
			res[m.ID] = m
		}
	}
	return res
}

// Summarize 电影数、观影次数与平均分
func Summarize(d *Dataset, f StatsFilter) Summary {
	logs := logsIn(d, f)
	sum := Summary{MovieCount: len(moviesIn(d, f)), WatchCount: len(logs)}
	total := 0
	for _, l := range logs {
		if l.Score != nil {
			sum.ScoredCount++
			total += *l.Score
		}
	}
	if sum.ScoredCount > 0 {
		sum.AverageScore = float64(total) / float64(sum.ScoredCount)
	}
	return sum
}

// ByMonth 按观影月份计数，按月份升序
func ByMonth(d *Dataset, f StatsFilter) []Bucket {
	counts := make(map[string]int)
	for _, l := range logsIn(d, f) {
		counts[l.WatchedAt.Format("2006-01")]++
	}
	res := toBuckets(counts, nil)
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res
}

// ByScore 按评分计数，未评分不计，按分数升序
func ByScore(d *Dataset, f StatsFilter) []Bucket {
	counts := make(map[string]int)
	for _, l := range logsIn(d, f) {
		if l.Score != nil {
			counts[strconv.Itoa(*l.Score)]++
		}
	}
	res := toBuckets(counts, nil)
	sort.Slice(res, func(i, j int) bool {
		a, _ := strconv.Atoi(res[i].Key)
		b, _ := strconv.Atoi(res[j].Key)
		return a < b
	})
	return res
}

// ByCountry 按生效制片国家计数电影
func ByCountry(d *Dataset, f StatsFilter) []Bucket {
	counts := make(map[string]int)
	labels := make(map[string]string)
	for _, m := range moviesIn(d, f) {
		for _, c := range m.ProductionCountries() {
			counts[c.Code]++
			if labels[c.Code] == "" {
				labels[c.Code] = c.Name
			}
		}
	}
	return byCount(toBuckets(counts, labels))
}

// ByTag 按标签计数电影
func ByTag(d *Dataset, f StatsFilter) []Bucket {
	movies := moviesIn(d, f)
	labels := make(map[string]string, len(d.Tags))
	for _, t := range d.Tags {
		labels[strconv.Itoa(t.ID)] = t.Name
	}
	counts := make(map[string]int)
	for _, mt := range d.MovieTags {
		key := strconv.Itoa(mt.TagID)
		if _, ok := movies[mt.MovieID]; ok && labels[key] != "" {
			counts[key]++
		}
	}
	return byCount(toBuckets(counts, labels))
}

// ByPerson 按人物计数某角色参与的电影，墓碑人物不计
func ByPerson(d *Dataset, f StatsFilter, role model.Role) []Bucket {
	movies := moviesIn(d, f)
	labels := make(map[string]string)
	for _, p := range d.Persons {
		if !p.IsTombstone() {
			labels[strconv.Itoa(p.ID)] = p.DisplayName
		}
	}
	seen := make(map[[2]int]bool)
	counts := make(map[string]int)
	for _, c := range d.Credits {
		key := strconv.Itoa(c.PersonID)
		if c.Role != role || labels[key] == "" {
			continue
		}
		if _, ok := movies[c.MovieID]; !ok || seen[[2]int{c.PersonID, c.MovieID}] {
			continue
		}
		seen[[2]int{c.PersonID, c.MovieID}] = true
		counts[key]++
	}
	return byCount(toBuckets(counts, labels))
}

func toBuckets(counts map[string]int, labels map[string]string) []Bucket {
	res := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		label := k
		if l, ok := labels[k]; ok && l != "" {
			label = l
		}
		res = append(res, Bucket{Key: k, Label: label, Count: n})
	}
	return res
}

// byCount 计数降序，同数按名称升序
func byCount(res []Bucket) []Bucket {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		if res[i].Label != res[j].Label {
			return res[i].Label < res[j].Label
		}
		return res[i].Key < res[j].Key
	})
	return res
}

// Top 取前 n 个桶，n <= 0 时不截断
func Top(buckets []Bucket, n int) []Bucket {
	if n <= 0 || len(buckets) <= n {
		return buckets
	}
	return buckets[:n]
}
