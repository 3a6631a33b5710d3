package repository

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/user/miroku/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接（gorm + lib/pq 驱动）并自动迁移
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        databaseURL,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// AutoMigrate 迁移所有表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Movie{},
		&model.Person{},
		&model.Credit{},
		&model.WatchLog{},
		&model.Tag{},
		&model.MovieTag{},
	)
}

// Repositories 仓库集合
type Repositories struct {
	DB       *gorm.DB
	User     *UserRepository
	Movie    *MovieRepository
	Person   *PersonRepository
	Credit   *CreditRepository
	WatchLog *WatchLogRepository
	Tag      *TagRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:       db,
		User:     NewUserRepository(db),
		Movie:    NewMovieRepository(db),
		Person:   NewPersonRepository(db),
		Credit:   NewCreditRepository(db),
		WatchLog: NewWatchLogRepository(db),
		Tag:      NewTagRepository(db),
	}
}

// Transaction 在单个事务中执行 fn，fn 内必须只使用传入的 tx 仓库集合
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
