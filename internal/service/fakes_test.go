package service

import (
	"context"
	"sync"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
)

// fakeCatalog 内存版外部目录
type fakeCatalog struct {
	mu     sync.Mutex
	movies map[int]*model.CatalogMovie
	errs   map[int]error
	calls  []int
	fresh  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{movies: map[int]*model.CatalogMovie{}, errs: map[int]error{}}
}

func (f *fakeCatalog) FetchMovie(_ context.Context, id int) (*model.CatalogMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	m, ok := f.movies[id]
	if !ok {
		return nil, apperr.NotFound("外部目录中不存在电影 %d", id)
	}
	return m, nil
}

func (f *fakeCatalog) FetchMovieFresh(ctx context.Context, id int) (*model.CatalogMovie, error) {
	f.mu.Lock()
	f.fresh++
	f.mu.Unlock()
	return f.FetchMovie(ctx, id)
}

func (f *fakeCatalog) set(id int, m *model.CatalogMovie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.Details.ID = id
	f.movies[id] = m
}

// person 构造归一化演职员
func person(id int, name string) model.CatalogPerson {
	return model.CatalogPerson{ExternalID: id, Name: name, DisplayName: name}
}

// castList 按顺序构造演员表
func castList(people ...model.CatalogPerson) []model.CatalogPerson {
	for i := range people {
		order := i
		people[i].Order = &order
	}
	return people
}

func catalogMovie(title string) *model.CatalogMovie {
	return &model.CatalogMovie{
		Details: model.CatalogMovieDetails{
			Title:               title,
			ReleaseDate:         "2020-01-01",
			PosterPath:          "/p.jpg",
			ProductionCountries: []model.Country{{Code: "JP", Name: "Japan"}},
		},
	}
}
