package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	NamingUUID      = "uuid"
	NamingTimestamp = "timestamp"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	// MaxQRSize bounds the longest side of a rendered QR code in pixels.
	MaxQRSize = 8192
)

// AppConfig holds file and environment driven configuration values.
// Every component receives the values it needs explicitly; nothing reads the
// cached copy after startup except main.
type AppConfig struct {
	AppPort            string
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Upload storage
	UploadDir              string
	QRCodeSubdir           string
	NamingScheme           string
	UploadRetentionMinutes int
	CleanupIntervalMinutes int
	// QR-code rasterization
	QRMinSize     int
	QRMaxSize     int
	QRCompression string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Upload ledger database
	DBDriver    string
	DBPath      string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for the stats cache
	RedisEnabled      bool
	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	StatsCacheSeconds int
}

// QRCodeDir is the directory QR-code uploads and their PNG renditions live in.
func (c AppConfig) QRCodeDir() string {
	return filepath.Join(c.UploadDir, c.QRCodeSubdir)
}

// Validate rejects values no component can work with.
func (c AppConfig) Validate() error {
	switch c.NamingScheme {
	case NamingUUID, NamingTimestamp:
	default:
		return fmt.Errorf("unknown naming scheme %q", c.NamingScheme)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if c.UploadDir == "" {
		return errors.New("upload directory must not be empty")
	}
	if c.QRCodeSubdir == "" || filepath.IsAbs(c.QRCodeSubdir) || strings.Contains(c.QRCodeSubdir, "..") {
		return fmt.Errorf("qrcode subdirectory %q must be a relative path inside the upload directory", c.QRCodeSubdir)
	}
	if c.QRMaxSize <= 0 || c.QRMaxSize > MaxQRSize {
		return fmt.Errorf("qrcode max size %d must be between 1 and %d", c.QRMaxSize, MaxQRSize)
	}
	if c.QRMinSize > c.QRMaxSize {
		return fmt.Errorf("qrcode min size %d exceeds max size %d", c.QRMinSize, c.QRMaxSize)
	}
	return nil
}

var cfg AppConfig
var loaded bool

// Load loads the configuration once during boot. The JSON file path defaults to
// config/config.json and can be moved with APP_CONFIG.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFrom(getEnv("APP_CONFIG", filepath.Join("config", "config.json")))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
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

// LoadFrom builds a configuration with precedence JSON file -> defaults -> environment.
// A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return AppConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// section is one grouped object of config.json.
type section map[string]any

func (s section) str(key string, dst *string) {
	if v, ok := s[key].(string); ok && v != "" {
		*dst = v
	}
}

func (s section) num(key string, dst *int) {
	if v, ok := s[key].(float64); ok {
		*dst = int(v)
	}
}

func (s section) flag(key string, dst *bool) {
	if v, ok := s[key].(bool); ok {
		*dst = v
	}
}

func (s section) list(key string, dst *[]string) {
	arr, ok := s[key].([]any)
	if !ok {
		return
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if v, ok := it.(string); ok {
			res = append(res, v)
		}
	}
	if len(res) > 0 {
		*dst = res
	}
}

// loadJSONConfig reads grouped sections (app, storage, qrcode, log, database, redis)
// into out. Returns an error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]section
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	if app, ok := raw["app"]; ok {
		app.str("AppPort", &out.AppPort)
		app.list("AllowedOrigins", &out.AllowedOrigins)
		app.num("RateLimitPerMinute", &out.RateLimitPerMinute)
		app.str("GinMode", &out.GinMode)
		app.str("GinPath", &out.GinPath)
	}
	if st, ok := raw["storage"]; ok {
		st.str("UploadDir", &out.UploadDir)
		st.str("QRCodeSubdir", &out.QRCodeSubdir)
		st.str("NamingScheme", &out.NamingScheme)
		st.num("UploadRetentionMinutes", &out.UploadRetentionMinutes)
		st.num("CleanupIntervalMinutes", &out.CleanupIntervalMinutes)
	}
	if qr, ok := raw["qrcode"]; ok {
		qr.num("MinSize", &out.QRMinSize)
		qr.num("MaxSize", &out.QRMaxSize)
		qr.str("Compression", &out.QRCompression)
	}
	if lg, ok := raw["log"]; ok {
		lg.str("Level", &out.LogLevel)
		lg.str("Path", &out.LogPath)
		lg.num("MaxSizeMB", &out.LogMaxSizeMB)
		lg.num("MaxBackups", &out.LogMaxBackups)
		lg.num("MaxAgeDays", &out.LogMaxAgeDays)
		lg.flag("Compress", &out.LogCompress)
	}
	if db, ok := raw["database"]; ok {
		db.str("Driver", &out.DBDriver)
		db.str("Path", &out.DBPath)
		db.str("URI", &out.DatabaseURI)
		db.str("Host", &out.DBHost)
		db.str("Port", &out.DBPort)
		db.str("User", &out.DBUser)
		db.str("Password", &out.DBPassword)
		db.str("Name", &out.DBName)
	}
	if rd, ok := raw["redis"]; ok {
		rd.flag("Enabled", &out.RedisEnabled)
		rd.str("Host", &out.RedisHost)
		rd.num("Port", &out.RedisPort)
		rd.num("DB", &out.RedisDB)
		rd.str("Password", &out.RedisPassword)
		rd.num("StatsCacheSeconds", &out.StatsCacheSeconds)
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3003"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.UploadDir == "" {
		c.UploadDir = "./uploads"
	}
	if c.QRCodeSubdir == "" {
		c.QRCodeSubdir = "qrcode"
	}
	if c.NamingScheme == "" {
		c.NamingScheme = NamingUUID
	}
	if c.CleanupIntervalMinutes == 0 {
		c.CleanupIntervalMinutes = 5
	}
	if c.QRMaxSize == 0 {
		c.QRMaxSize = 4096
	}
	if c.QRCompression == "" {
		c.QRCompression = "default"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.DBDriver == "" {
		c.DBDriver = DriverSQLite
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join("data", "uploads.db")
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "qrdrop"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.StatsCacheSeconds == 0 {
		c.StatsCacheSeconds = 30
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":       &c.AppPort,
		"GIN_MODE":       &c.GinMode,
		"GIN_PATH":       &c.GinPath,
		"UPLOAD_DIR":     &c.UploadDir,
		"QRCODE_SUBDIR":  &c.QRCodeSubdir,
		"NAMING_SCHEME":  &c.NamingScheme,
		"QR_COMPRESSION": &c.QRCompression,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_PATH":       &c.LogPath,
		"DB_DRIVER":      &c.DBDriver,
		"DB_PATH":        &c.DBPath,
		"DATABASE_URI":   &c.DatabaseURI,
		"DB_HOST":        &c.DBHost,
		"DB_PORT":        &c.DBPort,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"REDIS_HOST":     &c.RedisHost,
		"REDIS_PASSWORD": &c.RedisPassword,
	}
	for key, dst := range strs {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE":    &c.RateLimitPerMinute,
		"UPLOAD_RETENTION_MINUTES": &c.UploadRetentionMinutes,
		"CLEANUP_INTERVAL_MINUTES": &c.CleanupIntervalMinutes,
		"QR_MIN_SIZE":              &c.QRMinSize,
		"QR_MAX_SIZE":              &c.QRMaxSize,
		"LOG_MAX_SIZE_MB":          &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":          &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":         &c.LogMaxAgeDays,
		"REDIS_PORT":               &c.RedisPort,
		"REDIS_DB":                 &c.RedisDB,
		"STATS_CACHE_SECONDS":      &c.StatsCacheSeconds,
	}
	for key, dst := range ints {
		if err := parseIntEnv(key, dst); err != nil {
			return err
		}
	}

	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("REDIS_ENABLED", ""); v != "" {
		c.RedisEnabled = v == "true"
	}
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	return nil
}

func parseIntEnv(key string, dst *int) error {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid integer value %s=%q: %w", key, raw, err)
	}
	*dst = i
	return nil
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
