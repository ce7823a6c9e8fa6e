package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data must be provided via the environment or the JSON config file;
// it never has in-code defaults.
type AppConfig struct {
	AppPort   string
	JWTSecret string

	// Database backend: "mysql" for deployments, "sqlite" for development.
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPath      string

	// Redis for listing/detail caching and the token blacklist. Caching is
	// skipped entirely when RedisHost is empty.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Gin framework configuration
	GinMode string
	GinPath string

	AllowedOrigins     []string
	RateLimitPerMinute int

	// PageSize is the single pagination tunable shared by every listing view.
	PageSize int
	// LoginPath is where anonymous requests to mutating routes are redirected,
	// carrying the original path in the "next" query parameter.
	LoginPath string

	// Uploaded post images
	MediaDir    string
	UploadMaxMB int

	// Usernames allowed to manage groups.
	AdminUsernames []string

	// OAuth login providers
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectBase  string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBName == "" {
		c.DBName = "litepress"
	}
	if c.DBPath == "" {
		c.DBPath = "litepress.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.PageSize == 0 {
		c.PageSize = 10
	}
	if c.LoginPath == "" {
		c.LoginPath = "/auth/login"
	}
	if c.MediaDir == "" {
		c.MediaDir = "media"
	}
	if c.UploadMaxMB == 0 {
		c.UploadMaxMB = 10
	}
}

// jsonConfig mirrors AppConfig with flat snake_case keys for the optional file.
type jsonConfig struct {
	AppPort            string   `json:"app_port"`
	JWTSecret          string   `json:"jwt_secret"`
	DBDriver           string   `json:"db_driver"`
	DatabaseURI        string   `json:"database_uri"`
	DBHost             string   `json:"db_host"`
	DBPort             string   `json:"db_port"`
	DBUser             string   `json:"db_user"`
	DBPassword         string   `json:"db_password"`
	DBName             string   `json:"db_name"`
	DBPath             string   `json:"db_path"`
	RedisHost          string   `json:"redis_host"`
	RedisPort          int      `json:"redis_port"`
	RedisDB            int      `json:"redis_db"`
	RedisPassword      string   `json:"redis_password"`
	LogLevel           string   `json:"log_level"`
	LogPath            string   `json:"log_path"`
	LogMaxSizeMB       int      `json:"log_max_size_mb"`
	LogMaxBackups      int      `json:"log_max_backups"`
	LogMaxAgeDays      int      `json:"log_max_age_days"`
	LogCompress        bool     `json:"log_compress"`
	GinMode            string   `json:"gin_mode"`
	GinPath            string   `json:"gin_path"`
	AllowedOrigins     []string `json:"allowed_origins"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	PageSize           int      `json:"page_size"`
	LoginPath          string   `json:"login_path"`
	MediaDir           string   `json:"media_dir"`
	UploadMaxMB        int      `json:"upload_max_mb"`
	AdminUsernames     []string `json:"admin_usernames"`
	GitHubClientID     string   `json:"github_client_id"`
	GitHubClientSecret string   `json:"github_client_secret"`
	GoogleClientID     string   `json:"google_client_id"`
	GoogleClientSecret string   `json:"google_client_secret"`
	OAuthRedirectBase  string   `json:"oauth_redirect_base"`
}

// loadJSONConfig reads the JSON file into cfg if present. Missing file is not
// an error; invalid JSON is.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var jc jsonConfig
	if err := json.NewDecoder(f).Decode(&jc); err != nil {
		return err
	}

	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	setStr(&out.AppPort, jc.AppPort)
	setStr(&out.JWTSecret, jc.JWTSecret)
	setStr(&out.DBDriver, jc.DBDriver)
	setStr(&out.DatabaseURI, jc.DatabaseURI)
	setStr(&out.DBHost, jc.DBHost)
	setStr(&out.DBPort, jc.DBPort)
	setStr(&out.DBUser, jc.DBUser)
	setStr(&out.DBPassword, jc.DBPassword)
	setStr(&out.DBName, jc.DBName)
	setStr(&out.DBPath, jc.DBPath)
	setStr(&out.RedisHost, jc.RedisHost)
	setInt(&out.RedisPort, jc.RedisPort)
	setInt(&out.RedisDB, jc.RedisDB)
	setStr(&out.RedisPassword, jc.RedisPassword)
	setStr(&out.LogLevel, jc.LogLevel)
	setStr(&out.LogPath, jc.LogPath)
	setInt(&out.LogMaxSizeMB, jc.LogMaxSizeMB)
	setInt(&out.LogMaxBackups, jc.LogMaxBackups)
	setInt(&out.LogMaxAgeDays, jc.LogMaxAgeDays)
	out.LogCompress = out.LogCompress || jc.LogCompress
	setStr(&out.GinMode, jc.GinMode)
	setStr(&out.GinPath, jc.GinPath)
	if len(jc.AllowedOrigins) > 0 {
		out.AllowedOrigins = jc.AllowedOrigins
	}
	setInt(&out.RateLimitPerMinute, jc.RateLimitPerMinute)
	setInt(&out.PageSize, jc.PageSize)
	setStr(&out.LoginPath, jc.LoginPath)
	setStr(&out.MediaDir, jc.MediaDir)
	setInt(&out.UploadMaxMB, jc.UploadMaxMB)
	if len(jc.AdminUsernames) > 0 {
		out.AdminUsernames = jc.AdminUsernames
	}
	setStr(&out.GitHubClientID, jc.GitHubClientID)
	setStr(&out.GitHubClientSecret, jc.GitHubClientSecret)
	setStr(&out.GoogleClientID, jc.GoogleClientID)
	setStr(&out.GoogleClientSecret, jc.GoogleClientSecret)
	setStr(&out.OAuthRedirectBase, jc.OAuthRedirectBase)
	return nil
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnvInt("REDIS_PORT", c.RedisPort)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", c.LogMaxSizeMB)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", c.LogMaxAgeDays)
	c.LogCompress = getEnvBool("LOG_COMPRESS", c.LogCompress)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_PATH", c.GinPath)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.PageSize = getEnvInt("PAGE_SIZE", c.PageSize)
	c.LoginPath = getEnv("LOGIN_PATH", c.LoginPath)
	c.MediaDir = getEnv("MEDIA_DIR", c.MediaDir)
	c.UploadMaxMB = getEnvInt("UPLOAD_MAX_MB", c.UploadMaxMB)
	c.AdminUsernames = getEnvList("ADMIN_USERNAMES", c.AdminUsernames)
	c.GitHubClientID = getEnv("GITHUB_CLIENT_ID", c.GitHubClientID)
	c.GitHubClientSecret = getEnv("GITHUB_CLIENT_SECRET", c.GitHubClientSecret)
	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.OAuthRedirectBase = getEnv("OAUTH_REDIRECT_BASE", c.OAuthRedirectBase)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		res := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				res = append(res, s)
			}
		}
		if len(res) > 0 {
			return res
		}
	}
	return defaultVal
}
