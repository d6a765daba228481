package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fxledger/internal/domain"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is loaded once at startup and passed to every component that needs it.
type Config struct {
	DataDir        string
	UsersFile      string
	PortfoliosFile string
	RatesFile      string
	HistoryFile    string
	SessionFile    string

	RatesTTL        time.Duration
	BaseCurrency    domain.Code
	PivotCurrency   domain.Code
	SourcePriority  []domain.Source
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	StartingBalance decimal.Decimal

	CryptoCurrencies   []domain.Code
	FiatCurrencies     []domain.Code
	CoinGeckoURL       string
	CoinGeckoAPIKey    string
	ExchangeRateURL    string
	ExchangeRateAPIKey string

	StorageBackend string
	DatabaseURL    string
	RatesBackend   string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string

	HTTPPort    int
	JWTSecret   string
	JWTTTL      time.Duration
	AdminAPIKey string

	TelegramBotToken string
	SSHPort          int
	SSHHostKeyPath   string

	MCPTransport string
	MCPHTTPBind  string
	MCPHTTPPort  int

	LogLevel      string
	LogFormat     string
	LogPath       string
	ParserLogPath string
}

var required = []string{"RATES_TTL_SECONDS", "DEFAULT_BASE_CURRENCY", "DATA_DIR"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PIVOT_CURRENCY", "USD")
	v.SetDefault("SOURCE_PRIORITY", "coingecko,exchangerate")
	v.SetDefault("REFRESH_INTERVAL_SECS", 300)
	v.SetDefault("REQUEST_TIMEOUT_SECS", 10)
	v.SetDefault("STARTING_BALANCE", "1000")
	v.SetDefault("CRYPTO_CURRENCIES", "BTC,ETH,SOL")
	v.SetDefault("FIAT_CURRENCIES", "EUR,GBP,RUB")
	v.SetDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3")
	v.SetDefault("EXCHANGERATE_URL", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("STORAGE_BACKEND", BackendFile)
	v.SetDefault("RATES_BACKEND", BackendFile)
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("KAFKA_TOPIC", "fxledger.rates")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("JWT_TTL_MINUTES", 60)
	v.SetDefault("SSH_PORT", 2222)
	v.SetDefault("SSH_HOST_KEY_PATH", ".ssh/fxledger_ed25519")
	v.SetDefault("MCP_TRANSPORT", "stdio")
	v.SetDefault("MCP_HTTP_BIND", "127.0.0.1")
	v.SetDefault("MCP_HTTP_PORT", 8090)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads the optional config file and the environment. Missing or invalid
// required settings produce a *domain.ConfigurationError.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cerr := &domain.ConfigurationError{Invalid: map[string]string{}}
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			cerr.Missing = append(cerr.Missing, key)
		}
	}

	cfg := &Config{
		DataDir:            strings.TrimSpace(v.GetString("DATA_DIR")),
		CoinGeckoURL:       strings.TrimRight(strings.TrimSpace(v.GetString("COINGECKO_URL")), "/"),
		CoinGeckoAPIKey:    strings.TrimSpace(v.GetString("COINGECKO_API_KEY")),
		ExchangeRateURL:    strings.TrimRight(strings.TrimSpace(v.GetString("EXCHANGERATE_URL")), "/"),
		ExchangeRateAPIKey: strings.TrimSpace(v.GetString("EXCHANGERATE_API_KEY")),
		StorageBackend:     strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
		DatabaseURL:        strings.TrimSpace(v.GetString("DATABASE_URL")),
		RatesBackend:       strings.ToLower(strings.TrimSpace(v.GetString("RATES_BACKEND"))),
		RedisURL:           strings.TrimSpace(v.GetString("REDIS_URL")),
		KafkaTopic:         strings.TrimSpace(v.GetString("KAFKA_TOPIC")),
		HTTPPort:           v.GetInt("HTTP_PORT"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTTTL:             time.Duration(v.GetInt("JWT_TTL_MINUTES")) * time.Minute,
		AdminAPIKey:        strings.TrimSpace(v.GetString("ADMIN_API_KEY")),
		TelegramBotToken:   strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),
		SSHPort:            v.GetInt("SSH_PORT"),
		SSHHostKeyPath:     v.GetString("SSH_HOST_KEY_PATH"),
		MCPTransport:       strings.ToLower(strings.TrimSpace(v.GetString("MCP_TRANSPORT"))),
		MCPHTTPBind:        strings.TrimSpace(v.GetString("MCP_HTTP_BIND")),
		MCPHTTPPort:        v.GetInt("MCP_HTTP_PORT"),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		LogPath:            strings.TrimSpace(v.GetString("LOG_PATH")),
		ParserLogPath:      strings.TrimSpace(v.GetString("PARSER_LOG_PATH")),
	}

	cfg.UsersFile = pathOrDefault(v, "USERS_FILE", cfg.DataDir, "users.json")
	cfg.PortfoliosFile = pathOrDefault(v, "PORTFOLIOS_FILE", cfg.DataDir, "portfolios.json")
	cfg.RatesFile = pathOrDefault(v, "RATES_FILE", cfg.DataDir, "rates.json")
	cfg.HistoryFile = pathOrDefault(v, "HISTORY_FILE", cfg.DataDir, "exchange_rates.json")
	cfg.SessionFile = pathOrDefault(v, "SESSION_FILE", cfg.DataDir, "session.json")

	if raw := v.GetString("RATES_TTL_SECONDS"); strings.TrimSpace(raw) != "" {
		if n := v.GetInt("RATES_TTL_SECONDS"); n > 0 {
			cfg.RatesTTL = time.Duration(n) * time.Second
		} else {
			cerr.Invalid["RATES_TTL_SECONDS"] = fmt.Sprintf("must be a positive integer, got %q", raw)
		}
	}

	if raw := v.GetString("DEFAULT_BASE_CURRENCY"); strings.TrimSpace(raw) != "" {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			cerr.Invalid["DEFAULT_BASE_CURRENCY"] = err.Error()
		}
		cfg.BaseCurrency = code
	}

	pivot, err := domain.NormalizeCode(v.GetString("PIVOT_CURRENCY"))
	if err != nil {
		cerr.Invalid["PIVOT_CURRENCY"] = err.Error()
	}
	cfg.PivotCurrency = pivot

	if cfg.SourcePriority, err = domain.ParseSources(v.GetString("SOURCE_PRIORITY")); err != nil {
		cerr.Invalid["SOURCE_PRIORITY"] = err.Error()
	}
	if cfg.CryptoCurrencies, err = domain.ParseCodes(v.GetString("CRYPTO_CURRENCIES")); err != nil {
		cerr.Invalid["CRYPTO_CURRENCIES"] = err.Error()
	}
	if cfg.FiatCurrencies, err = domain.ParseCodes(v.GetString("FIAT_CURRENCIES")); err != nil {
		cerr.Invalid["FIAT_CURRENCIES"] = err.Error()
	}

	cfg.RefreshInterval = positiveSeconds(v, "REFRESH_INTERVAL_SECS", 300)
	cfg.RequestTimeout = positiveSeconds(v, "REQUEST_TIMEOUT_SECS", 10)

	balance, err := decimal.NewFromString(strings.TrimSpace(v.GetString("STARTING_BALANCE")))
	if err != nil || balance.IsNegative() {
		cerr.Invalid["STARTING_BALANCE"] = fmt.Sprintf("must be a non-negative decimal, got %q", v.GetString("STARTING_BALANCE"))
	}
	cfg.StartingBalance = balance

	if cfg.StorageBackend != BackendFile && cfg.StorageBackend != BackendPostgres {
		cerr.Invalid["STORAGE_BACKEND"] = fmt.Sprintf("unsupported value %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == BackendPostgres && cfg.DatabaseURL == "" {
		cerr.Missing = append(cerr.Missing, "DATABASE_URL")
	}
	if cfg.RatesBackend != BackendFile && cfg.RatesBackend != BackendRedis {
		cerr.Invalid["RATES_BACKEND"] = fmt.Sprintf("unsupported value %q", cfg.RatesBackend)
	}

	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warnf("unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	if cfg.ExchangeRateAPIKey == "" {
		log.Warn("EXCHANGERATE_API_KEY not set, exchangerate source will report auth failures")
	}
	if cfg.TelegramBotToken == "" {
		log.Debug("TELEGRAM_BOT_TOKEN not set")
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return nil, cerr
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	if path := strings.TrimSpace(os.Getenv("FXLEDGER_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return &domain.ConfigurationError{Invalid: map[string]string{"FXLEDGER_CONFIG": err.Error()}}
		}
		return nil
	}

	v.SetConfigName("fxledger")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return &domain.ConfigurationError{Invalid: map[string]string{"config file": err.Error()}}
	}
	return nil
}

func pathOrDefault(v *viper.Viper, key, dir, name string) string {
	if p := strings.TrimSpace(v.GetString(key)); p != "" {
		return p
	}
	return filepath.Join(dir, name)
}

func positiveSeconds(v *viper.Viper, key string, fallback int) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		log.Warnf("invalid %s=%q, using %ds", key, v.GetString(key), fallback)
		n = fallback
	}
	return time.Duration(n) * time.Second
}
