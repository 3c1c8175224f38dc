package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Pix             PixConfig
	Storage         StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// PixConfig descreve o acesso à API Pix do Banco Inter.
// ClientID/Secret e os caminhos do certificado mTLS chegam por ambiente;
// chave Pix e flag de habilitação podem ser sobrepostas pelo settings em banco.
type PixConfig struct {
	Enabled       bool
	BaseURL       string
	ClientID      string
	ClientSecret  string
	CertFile      string
	KeyFile       string
	PixKey        string
	Scope         string
	ExpirySeconds int
}

// IsComplete indica se há credenciais e certificado suficientes para operar.
func (p PixConfig) IsComplete() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.CertFile != "" && p.KeyFile != "" && p.PixKey != ""
}

// StorageConfig define onde o vault grava arquivos gerados.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.Pix = PixConfig{
		Enabled:      getEnv("PIX_ENABLED", "") == "true",
		BaseURL:      strings.TrimRight(getEnv("PIX_BASE_URL", "https://cdpj.partners.bancointer.com.br"), "/"),
		ClientID:     strings.TrimSpace(getEnv("PIX_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(getEnv("PIX_CLIENT_SECRET", "")),
		CertFile:     strings.TrimSpace(getEnv("PIX_CERT_FILE", "")),
		KeyFile:      strings.TrimSpace(getEnv("PIX_KEY_FILE", "")),
		PixKey:       strings.TrimSpace(getEnv("PIX_KEY", "")),
		Scope:        strings.TrimSpace(getEnv("PIX_SCOPE", "pix.write")),
	}

	expiry, err := strconv.Atoi(getEnv("PIX_EXPIRY_SECONDS", "3600"))
	if err != nil || expiry <= 0 {
		return nil, errors.New("PIX_EXPIRY_SECONDS inválido")
	}
	cfg.Pix.ExpirySeconds = expiry

	cfg.Storage = StorageConfig{
		Provider:    strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop")),
		S3Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
		S3Region:    getEnv("STORAGE_S3_REGION", "auto"),
		S3Bucket:    getEnv("STORAGE_S3_BUCKET", ""),
		S3AccessKey: getEnv("STORAGE_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("STORAGE_S3_SECRET_KEY", ""),
		S3PublicURL: getEnv("STORAGE_S3_PUBLIC_URL", ""),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
