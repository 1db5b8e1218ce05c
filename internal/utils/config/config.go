package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/types/environments"
)

type AppConfig struct {
	Environment    environments.Environment
	ApiServer      ApiServerConfig
	Postgres       DBConnection
	Redis          RedisConfig
	Tron           TronConfig
	Ledger         LedgerConfig
	Otc            OtcConfig
	Swap           SwapConfig
	Dispute        DisputeConfig
	Sweeper        SweeperConfig
	UptimeWebhooks UptimeWebhookConfig
	Vault          VaultConfig
}

type ApiServerConfig struct {
	Port               string
	AllowedOrigins     string
	AdminToken         string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode      string
	MaxOpenConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	URL string
}

type TronConfig struct {
	APIURL       string
	APIKey       string
	USDTContract string
}

type LedgerConfig struct {
	RPCEndpoint     string
	SubscribeBlocks bool
}

type OtcConfig struct {
	OrderTTL            time.Duration
	ConfirmationGrace   time.Duration
	FirstPurchaseMaxQty decimal.Decimal
}

type SwapConfig struct {
	Timeout            time.Duration
	VerificationWindow time.Duration
}

type DisputeConfig struct {
	MinDeposit          decimal.Decimal
	ResponseWindow      time.Duration
	MediationStartDelay time.Duration
	MediationWindow     time.Duration
	ArbitrationWindow   time.Duration
	LoserSlashBps       int
	Arbitrators         []string
	ArbitratorSelection string
	PanelSize           int
	Quorum              int
	PolicyFile          string
}

type SweeperConfig struct {
	Schedule  string
	BatchSize int
	Timeout   time.Duration
}

type UptimeWebhookConfig struct {
	SweeperURL string
}

// VaultConfig enables loading credentials from Vault when Addr is set
type VaultConfig struct {
	Addr         string
	KVSecretPath string
	Role         string
	TokenPath    string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	cfg := &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			Port:               envVarOrDefault("PORT", "8080"),
			AllowedOrigins:     os.Getenv("ALLOWED_ORIGINS"),
			AdminToken:         os.Getenv("ADMIN_TOKEN"),
			RateLimitPerSecond: envVarAsFloat("API_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     envVarAtoiOrDefault("API_RATE_LIMIT_BURST", 40),
		},
		Postgres: DBConnection{
			Host:         os.Getenv("DB_HOST"),
			Port:         os.Getenv("DB_PORT"),
			User:         os.Getenv("DB_USER"),
			Name:         os.Getenv("DB_NAME"),
			Pass:         os.Getenv("DB_PASS"),
			SSLMode:      os.Getenv("DB_SSL_MODE"),
			MaxOpenConns: envVarAtoiOrDefault("DB_MAX_OPEN_CONNS", 20),
			AutoMigrate:  envVarAsBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Tron: TronConfig{
			APIURL:       envVarOrDefault("TRON_API_URL", "https://api.trongrid.io"),
			APIKey:       os.Getenv("TRON_API_KEY"),
			USDTContract: envVarOrDefault("TRON_USDT_CONTRACT", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),
		},
		Ledger: LedgerConfig{
			RPCEndpoint:     os.Getenv("LEDGER_RPC_ENDPOINT"),
			SubscribeBlocks: envVarAsBool("LEDGER_SUBSCRIBE_BLOCKS"),
		},
		Otc: OtcConfig{
			OrderTTL:            envVarAsDuration("OTC_ORDER_TTL", time.Hour),
			ConfirmationGrace:   envVarAsDuration("OTC_CONFIRMATION_GRACE", 0),
			FirstPurchaseMaxQty: envVarAsDecimal("OTC_FIRST_PURCHASE_MAX_QTY", decimal.Zero),
		},
		Swap: SwapConfig{
			Timeout:            envVarAsDuration("SWAP_TIMEOUT", 2*time.Hour),
			VerificationWindow: envVarAsDuration("SWAP_VERIFICATION_WINDOW", 30*time.Minute),
		},
		Dispute: DisputeConfig{
			MinDeposit:          envVarAsDecimal("DISPUTE_MIN_DEPOSIT", decimal.NewFromInt(100)),
			ResponseWindow:      envVarAsDuration("DISPUTE_RESPONSE_WINDOW", 48*time.Hour),
			MediationStartDelay: envVarAsDuration("DISPUTE_MEDIATION_START_DELAY", 0),
			MediationWindow:     envVarAsDuration("DISPUTE_MEDIATION_WINDOW", 72*time.Hour),
			ArbitrationWindow:   envVarAsDuration("DISPUTE_ARBITRATION_WINDOW", 168*time.Hour),
			LoserSlashBps:       envVarAtoiOrDefault("DISPUTE_LOSER_SLASH_BPS", 10000),
			Arbitrators:         envVarAsList("DISPUTE_ARBITRATORS"),
			ArbitratorSelection: envVarOrDefault("DISPUTE_ARBITRATOR_SELECTION", "round_robin"),
			PanelSize:           envVarAtoiOrDefault("DISPUTE_PANEL_SIZE", 1),
			Quorum:              envVarAtoiOrDefault("DISPUTE_QUORUM", 1),
			PolicyFile:          os.Getenv("DISPUTE_POLICY_FILE"),
		},
		Sweeper: SweeperConfig{
			Schedule:  envVarOrDefault("SWEEPER_SCHEDULE", "@every 30s"),
			BatchSize: envVarAtoiOrDefault("SWEEPER_BATCH_SIZE", 200),
			Timeout:   envVarAsDuration("SWEEPER_TIMEOUT", 5*time.Minute),
		},
		UptimeWebhooks: UptimeWebhookConfig{
			SweeperURL: os.Getenv("UPTIME_WEBHOOK_SWEEPER_URL"),
		},
		Vault: VaultConfig{
			Addr:         os.Getenv("VAULT_ADDR"),
			KVSecretPath: os.Getenv("VAULT_KV_SECRET_PATH"),
			Role:         os.Getenv("VAULT_ROLE"),
			TokenPath:    os.Getenv("VAULT_TOKEN_PATH"),
		},
	}

	if cfg.Dispute.PolicyFile != "" {
		if err := cfg.Dispute.ApplyPolicyFile(cfg.Dispute.PolicyFile); err != nil {
			panic(err)
		}
	}

	return cfg
}

func envVarOrDefault(envName, defaultValue string) string {
	if value := os.Getenv(envName); value != "" {
		return value
	}
	return defaultValue
}

func envVarAtoiOrDefault(envName string, defaultValue int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsFloat(envName string, defaultValue float64) float64 {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsBool(envName string) bool {
	valueStr := os.Getenv(envName)
	return valueStr == "true"
}

func envVarAsDuration(envName string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsDecimal(envName string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsList(envName string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(envName), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
