package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	JWTExpiry   time.Duration
	Port        string
	SiteName    string

	// TMDB 外部影片目录
	TMDBToken      string
	TMDBBaseURL    string
	TMDBLanguage   string
	CatalogTimeout time.Duration

	// 批量刷新时每部电影之间的固定间隔（对外部 API 限流友好）
	RefreshDelay time.Duration

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

// Load 加载配置
func Load() *Config {
	expiryHours := getEnvInt("JWT_EXPIRY_HOURS", 72)

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "miroku")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:            getEnv("APP_ENV", "development"),
		AppSecret:      appSecret,
		DatabaseURL:    dbURL,
		JWTExpiry:      time.Duration(expiryHours) * time.Hour,
		Port:           getEnv("PORT", "5005"),
		SiteName:       getEnv("SITE_NAME", "Miroku"),
		TMDBToken:      getEnv("TMDB_TOKEN", ""),
		TMDBBaseURL:    strings.TrimRight(getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"), "/"),
		TMDBLanguage:   getEnv("TMDB_LANGUAGE", "ja-JP"),
		CatalogTimeout: time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		RefreshDelay:   time.Duration(getEnvInt("REFRESH_DELAY_MS", 300)) * time.Millisecond,
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
