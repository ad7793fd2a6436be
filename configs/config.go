package config

import "os"

type Storage struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	Storage               Storage
	TelegramBotToken      string
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURI  string
	SecretKey             string
	CookieName            string
	PublishCronSpec       string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", "127.0.0.1:6379"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		Storage: Storage{
			AccountID:  getEnv("STORAGE_ACCOUNT_ID", ""),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
			BucketName: getEnv("STORAGE_BUCKET_NAME", ""),
			PublicURL:  getEnv("STORAGE_PUBLIC_URL", ""),
		},
		SecretKey:       getEnv("SECRET_KEY", ""),
		CookieName:      getEnv("COOKIE_NAME", "crossposter_session"),
		PublishCronSpec: getEnv("PUBLISH_CRON_SPEC", "@every 00h01m00s"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
