package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Mode string

const (
	// ModeOffline runs against sqlite with file-backed progress, for
	// classroom machines without connectivity.
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	SiteID    string

	DBDriver string
	DBDSN    string

	// ResourceBasePath backs the fs resource store (videos/documents).
	ResourceBasePath string
	// ProgressBasePath backs the per-learner progress documents in offline mode.
	ProgressBasePath string

	EnableLocalAuth bool
	AuthSecret      string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

// FromEnv loads configuration from the environment, after an optional .env
// file (missing .env is not an error).
func FromEnv() Config {
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:             mode,
		HTTPAddr:         addr,
		PublicURL:        os.Getenv("PUBLIC_URL"),
		SiteID:           envOr("SITE_ID", "local"),
		DBDriver:         envOr("DB_DRIVER", "sqlite"),
		DBDSN:            envOr("DB_DSN", ""),
		ResourceBasePath: envOr("RESOURCE_BASE_PATH", "./data/resources"),
		ProgressBasePath: envOr("PROGRESS_BASE_PATH", "./data/progress"),
		EnableLocalAuth:  envBool("ENABLE_LOCAL_AUTH", true),
		AuthSecret:       envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:        envOr("ADMIN_USER", "admin"),
		AdminPassHash:    envOr("ADMIN_PASS_HASH", ""),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://kidsexplore.mtech.co.zw"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
	}
}

func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
