// Пакет config — загрузка и валидация конфигурации Databrowser Gateway
// из переменных окружения (с опциональным TOML-файлом, см. API_CONFIG).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Version — версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации шлюза.
type Config struct {
	// --- Сервер ---

	Port     int
	LogLevel slog.Level
	LogFormat string

	// PublicURL — публичный URL, под которым виден сервис (для zarr-ссылок и OIDC redirect).
	PublicURL string
	// ProxyPrefix — префикс пути, под которым сервис смонтирован за обратным прокси.
	ProxyPrefix string
	// WorkerChannel — имя канала cache/broker, на который публикуются задания Zarr.
	WorkerChannel string

	// Services — подмножество {zarr-stream, databrowser, stacapi}, включённых в этом процессе.
	Services []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration

	// BackendTimeout — таймаут по умолчанию для вызовов бэкендов поиска.
	BackendTimeout time.Duration

	// --- PostgreSQL (document store: searches, user_flavours, user_data_meta) ---

	MongoHost     string
	MongoUser     string
	MongoPassword string
	MongoDB       string

	// --- Solr (полнотекстовый индекс) ---

	SolrHost string
	SolrCore string

	// --- Redis (cache/broker для Zarr) ---

	RedisHost       string
	RedisUser       string
	RedisPassword   string
	RedisSSLCert    string
	RedisSSLKey     string
	CacheExpSeconds int

	// --- OIDC ---

	OIDCDiscoveryURL  string
	OIDCClientID      string
	OIDCClientSecret  string
	// TokenClaims — фильтры claim'ов, обязательные для КАЖДОГО валидного
	// токена: "path.expr" → regex. Токен, не проходящий хотя бы
	// один фильтр, отклоняется как UNAUTHENTICATED.
	TokenClaims map[string]string
	// AdminClaims — фильтры claim'ов, дающие административные права
	// (запись global-flavour'ов, удаление чужих user-data).
	AdminClaims map[string]string

	AuthPorts []int
	// AuthRedirectURIs — зарегистрированные абсолютные redirect_uri для
	// Authorization Code flow; localhost-порты из AuthPorts допускаются
	// всегда.
	AuthRedirectURIs []string

	// Debug включает подробное логирование и отключает кэширование discovery document.
	Debug bool

	// StatsQueueSize — ёмкость очереди статистики (по умолчанию 4096).
	StatsQueueSize int

	// ShareSigningKey — ключ подписи pre-signed URL.
	ShareSigningKey string
}

// ServiceEnabled сообщает, включён ли сервис (API_SERVICES) в этом процессе.
func (c *Config) ServiceEnabled(name string) bool {
	for _, s := range c.Services {
		if s == name {
			return true
		}
	}
	return false
}

// Load загружает конфигурацию: сперва из файла API_CONFIG (если задан),
// затем переменные окружения переопределяют значения файла.
func Load() (*Config, error) {
	fileValues := map[string]string{}
	if path := os.Getenv("API_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &fileValues); err != nil {
			return nil, fmt.Errorf("API_CONFIG: чтение %s: %w", path, err)
		}
	}

	getenv := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileValues[key]
	}

	cfg := &Config{}
	var err error

	cfg.Port, err = getInt(getenv, "API_PORT", 7777)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel, err = parseLogLevel(getDefault(getenv, "API_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("API_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getDefault(getenv, "API_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("API_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.Debug, err = getBool(getenv, "DEBUG", false)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}

	cfg.PublicURL = getDefault(getenv, "API_URL", "http://localhost:7777")
	cfg.ProxyPrefix = getenv("API_PROXY")
	cfg.WorkerChannel = getDefault(getenv, "API_WORKER", "zarr-requests")

	servicesRaw := getDefault(getenv, "API_SERVICES", "zarr-stream,databrowser,stacapi")
	cfg.Services = splitCSV(servicesRaw)
	for _, s := range cfg.Services {
		switch s {
		case "zarr-stream", "databrowser", "stacapi":
		default:
			return nil, fmt.Errorf("API_SERVICES: неизвестный сервис %q", s)
		}
	}

	cfg.HTTPReadTimeout, err = getDuration(getenv, "API_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPWriteTimeout, err = getDuration(getenv, "API_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPIdleTimeout, err = getDuration(getenv, "API_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout, err = getDuration(getenv, "API_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.BackendTimeout, err = getDuration(getenv, "API_BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.MongoHost = getenv("API_MONGO_HOST")
	cfg.MongoUser = getenv("API_MONGO_USER")
	cfg.MongoPassword = getenv("API_MONGO_PASSWORD")
	cfg.MongoDB = getDefault(getenv, "API_MONGO_DB", "databrowser")

	cfg.SolrHost = getDefault(getenv, "API_SOLR_HOST", "http://localhost:8983")
	cfg.SolrCore = getDefault(getenv, "API_SOLR_CORE", "files")

	cfg.RedisHost = getDefault(getenv, "API_REDIS_HOST", "localhost:6379")
	cfg.RedisUser = getenv("API_REDIS_USER")
	cfg.RedisPassword = getenv("API_REDIS_PASSWORD")
	cfg.RedisSSLCert = getenv("API_REDIS_SSL_CERTFILE")
	cfg.RedisSSLKey = getenv("API_REDIS_SSL_KEYFILE")

	cfg.CacheExpSeconds, err = getInt(getenv, "API_CACHE_EXP", 86400)
	if err != nil {
		return nil, err
	}

	cfg.OIDCDiscoveryURL = getenv("API_OIDC_DISCOVERY_URL")
	cfg.OIDCClientID = getenv("API_OIDC_CLIENT_ID")
	cfg.OIDCClientSecret = getenv("API_OIDC_CLIENT_SECRET")
	cfg.TokenClaims = parseClaimFilters(getenv("API_OIDC_TOKEN_CLAIMS"))
	cfg.AdminClaims = parseClaimFilters(getenv("API_ADMIN_TOKEN_CLAIMS"))

	cfg.AuthPorts, err = parseIntList(getenv("API_AUTH_PORTS"))
	if err != nil {
		return nil, fmt.Errorf("API_AUTH_PORTS: %w", err)
	}
	cfg.AuthRedirectURIs = splitCSV(getenv("API_AUTH_REDIRECT_URIS"))

	cfg.StatsQueueSize, err = getInt(getenv, "API_STATS_QUEUE_SIZE", 4096)
	if err != nil {
		return nil, err
	}

	cfg.ShareSigningKey = getenv("API_SHARE_SIGNING_KEY")
	if cfg.ShareSigningKey == "" {
		return nil, fmt.Errorf("API_SHARE_SIGNING_KEY: обязательная переменная окружения не задана")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- helpers ---

func getDefault(getenv func(string) string, key, defaultVal string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(getenv func(string) string, key string, defaultVal int) (int, error) {
	v := getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", key, v)
	}
	return n, nil
}

func getBool(getenv func(string) string, key string, defaultVal bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: некорректное булево значение: %q", key, v)
	}
	return b, nil
}

func getDuration(getenv func(string) string, key string, defaultVal time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", key, v)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntList(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("некорректный порт: %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseClaimFilters разбирает строку вида "path.expr=regex;path2.expr=regex2"
// в карту фильтров claim'ов.
func parseClaimFilters(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}
