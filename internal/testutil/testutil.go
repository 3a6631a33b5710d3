// Package testutil 测试用的数据库与种子数据
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
)

var dbSeq atomic.Int64

// DB 每个测试一个独立的内存 SQLite 库，已迁移
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:miroku_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("test db handle: %v", err)
	}
	// 内存库在单连接下才能在事务间共享
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Repos 基于测试库的仓库集合
func Repos(tb testing.TB) *repository.Repositories {
	tb.Helper()
	return repository.NewRepositories(DB(tb))
}

// SeedUser 创建用户
func SeedUser(tb testing.TB, repos *repository.Repositories, email string) *model.User {
	tb.Helper()
	u, err := repos.User.Create(context.Background(), email, email, "password")
	if err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedMovie 创建电影；externalID 为 0 时为手动电影
func SeedMovie(tb testing.TB, repos *repository.Repositories, ownerID, externalID int, title string) *model.Movie {
	tb.Helper()
	m := &model.Movie{
		OwnerID:  ownerID,
		Snapshot: model.MovieSnapshot{Title: title, ProductionCountries: []model.Country{}},
	}
	if externalID > 0 {
		ext := externalID
		m.ExternalID = &ext
	}
	if err := repos.Movie.Create(context.Background(), m); err != nil {
		tb.Fatalf("seed movie: %v", err)
	}
	return m
}

// SeedPerson 创建人物；externalID 为 0 时不带外部 ID
func SeedPerson(tb testing.TB, repos *repository.Repositories, ownerID, externalID int, name string) *model.Person {
	tb.Helper()
	var ext *int
	if externalID > 0 {
		ext = &externalID
	}
	p, err := repos.Person.Create(context.Background(), ownerID, ext, name)
	if err != nil {
		tb.Fatalf("seed person: %v", err)
	}
	return p
}

// SeedCredit 创建关联
func SeedCredit(tb testing.TB, repos *repository.Repositories, movieID, personID int, role model.Role, castOrder *int) *model.Credit {
	tb.Helper()
	c := &model.Credit{MovieID: movieID, PersonID: personID, Role: role, CastOrder: castOrder}
	if err := repos.Credit.Create(context.Background(), c); err != nil {
		tb.Fatalf("seed credit: %v", err)
	}
	return c
}

// SeedWatchLog 创建观影记录
func SeedWatchLog(tb testing.TB, repos *repository.Repositories, ownerID, movieID int, watchedAt time.Time, score *int) *model.WatchLog {
	tb.Helper()
	l := &model.WatchLog{OwnerID: ownerID, MovieID: movieID, WatchedAt: watchedAt, Score: score}
	if err := repos.WatchLog.Create(context.Background(), l); err != nil {
		tb.Fatalf("seed watch log: %v", err)
	}
	return l
}

// Int 取整数指针
func Int(v int) *int { return &v }
