package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "3003", c.AppPort)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "./uploads", c.UploadDir)
	assert.Equal(t, filepath.Join("uploads", "qrcode"), filepath.Clean(c.QRCodeDir()))
	assert.Equal(t, NamingUUID, c.NamingScheme)
	assert.Equal(t, DriverSQLite, c.DBDriver)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.False(t, c.RedisEnabled)
}

func TestLoadFrom_ExampleFile(t *testing.T) {
	fromFile, err := LoadFrom("config.example.json")
	require.NoError(t, err)
	defaults, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "logs/app.log", fromFile.LogPath)
	fromFile.LogPath = defaults.LogPath
	assert.Equal(t, defaults, fromFile, "example file mirrors the defaults")
}

func TestLoadFrom_JSONSections(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "AllowedOrigins": ["http://localhost:3000"]},
		"storage": {"UploadDir": "/srv/files", "NamingScheme": "timestamp", "UploadRetentionMinutes": 15},
		"qrcode": {"MinSize": 256, "Compression": "best"},
		"log": {"Level": "debug", "Compress": true},
		"redis": {"Enabled": true, "Port": 6380}
	}`)

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowedOrigins)
	assert.Equal(t, "/srv/files", c.UploadDir)
	assert.Equal(t, "/srv/files/qrcode", c.QRCodeDir())
	assert.Equal(t, NamingTimestamp, c.NamingScheme)
	assert.Equal(t, 15, c.UploadRetentionMinutes)
	assert.Equal(t, 256, c.QRMinSize)
	assert.Equal(t, "best", c.QRCompression)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.LogCompress)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 6380, c.RedisPort)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"app": {"AppPort": "9000"}}`)
	t.Setenv("APP_PORT", "4000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("QR_MIN_SIZE", "512")
	t.Setenv("REDIS_ENABLED", "true")

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "4000", c.AppPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, 512, c.QRMinSize)
	assert.True(t, c.RedisEnabled)
}

func TestLoadFrom_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadFrom(writeConfig(t, `{"app": `))
		assert.Error(t, err)
	})

	t.Run("invalid integer env", func(t *testing.T) {
		t.Setenv("QR_MAX_SIZE", "huge")
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorContains(t, err, "QR_MAX_SIZE")
	})

	t.Run("non-positive max size env", func(t *testing.T) {
		t.Setenv("QR_MAX_SIZE", "-1")
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorContains(t, err, "max size")
	})

	t.Run("unknown naming scheme", func(t *testing.T) {
		t.Setenv("NAMING_SCHEME", "sequential")
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorContains(t, err, "naming scheme")
	})
}

func TestValidate(t *testing.T) {
	base := AppConfig{
		UploadDir:    "uploads",
		QRCodeSubdir: "qrcode",
		NamingScheme: NamingUUID,
		DBDriver:     DriverSQLite,
		QRMaxSize:    4096,
	}
	require.NoError(t, base.Validate())

	escaping := base
	escaping.QRCodeSubdir = "../elsewhere"
	assert.Error(t, escaping.Validate())

	sizes := base
	sizes.QRMinSize, sizes.QRMaxSize = 2048, 1024
	assert.Error(t, sizes.Validate())

	for _, size := range []int{0, -1, MaxQRSize + 1} {
		uncapped := base
		uncapped.QRMaxSize = size
		assert.ErrorContains(t, uncapped.Validate(), "max size", "QRMaxSize %d", size)
	}
	capped := base
	capped.QRMaxSize = MaxQRSize
	assert.NoError(t, capped.Validate())

	driver := base
	driver.DBDriver = "postgres"
	assert.Error(t, driver.Validate())
}

func TestInitDatabase_SQLite(t *testing.T) {
	type ledgerRow struct {
		ID   uint `gorm:"primaryKey"`
		Name string
	}
	c := AppConfig{
		DBDriver: DriverSQLite,
		DBPath:   filepath.Join(t.TempDir(), "nested", "ledger.db"),
		LogLevel: "silent",
	}

	db, err := InitDatabase(c, &ledgerRow{})
	require.NoError(t, err)
	require.NoError(t, db.Create(&ledgerRow{Name: "x"}).Error)

	var count int64
	require.NoError(t, db.Model(&ledgerRow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestToGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, toGormLogLevel("debug"))
	assert.Equal(t, logger.Warn, toGormLogLevel(""))
	assert.Equal(t, logger.Error, toGormLogLevel("error"))
	assert.Equal(t, logger.Silent, toGormLogLevel("silent"))
}
