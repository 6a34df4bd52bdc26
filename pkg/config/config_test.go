package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperRequiresAuthSettings(t *testing.T) {
	_, err := fromViper(newViper(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAuthConfig))
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "JWT_ACCESS_TOKEN_EXPIRATION")
	assert.Contains(t, err.Error(), "JWT_REFRESH_TOKEN_EXPIRATION")
}

func TestFromViperRejectsNonPositiveLifetimes(t *testing.T) {
	_, err := fromViper(newViper(map[string]interface{}{
		"JWT_SECRET":                   "s3cr3t",
		"JWT_ACCESS_TOKEN_EXPIRATION":  "0",
		"JWT_REFRESH_TOKEN_EXPIRATION": "1h",
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAuthConfig))
	assert.Contains(t, err.Error(), "JWT_ACCESS_TOKEN_EXPIRATION")
	assert.Contains(t, err.Error(), "JWT_REFRESH_TOKEN_EXPIRATION")
	assert.NotContains(t, err.Error(), "JWT_SECRET")
}

func TestFromViperLoadsSecondsAndDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{
		"JWT_SECRET":                   "s3cr3t",
		"JWT_ACCESS_TOKEN_EXPIRATION":  "900",
		"JWT_REFRESH_TOKEN_EXPIRATION": "604800",
		"ALLOWED_ORIGINS":              "https://a.example, https://b.example ,",
	}))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "/api/v1/files/", cfg.Storage.PublicPrefix)
	assert.Equal(t, 10, cfg.Password.HashCost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "s3cr3t", cfg.Storage.SigningSecret)
	assert.Equal(t, 15*time.Minute, cfg.Storage.SignedURLTTL)
}

func TestFromViperRejectsUnknownStorageDriver(t *testing.T) {
	_, err := fromViper(newViper(map[string]interface{}{
		"JWT_SECRET":                   "s3cr3t",
		"JWT_ACCESS_TOKEN_EXPIRATION":  "900",
		"JWT_REFRESH_TOKEN_EXPIRATION": "3600",
		"STORAGE_DRIVER":               "ftp",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}
