package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Anonymization
	MappingFilePath     string
	MappingSaveInterval time.Duration
	DetectorPolicyPath  string
	AnonymizeEventLog   bool
	AnonymizeFileIndex  bool

	// Data providers
	EventLogSourcePath  string
	FileIndexSourcePath string
	EventLogCacheTTL    time.Duration

	// Permission rules
	PolicyRulesPath string

	// Database (audit trail)
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	AuditEnabled     bool

	// Redis (query result cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// Kafka (record relay + audit events)
	KafkaBrokers      []string
	KafkaGroupID      string
	RelayEnabled      bool
	RelayInputTopic   string
	RelayOutputTopic  string
	AuditEventTopic   string
	AuditEventEnabled bool

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	AuthRequired     bool

	// Gateway
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8090"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		MappingFilePath:     getEnv("MAPPING_FILE_PATH", "data/anonymization-mapping.json"),
		MappingSaveInterval: getDuration("MAPPING_SAVE_INTERVAL", 60*time.Second),
		DetectorPolicyPath:  getEnv("DETECTOR_POLICY_PATH", ""),
		AnonymizeEventLog:   getBoolEnv("ANONYMIZE_EVENT_LOG", true),
		AnonymizeFileIndex:  getBoolEnv("ANONYMIZE_FILE_INDEX", true),

		EventLogSourcePath:  getEnv("EVENT_LOG_SOURCE_PATH", "data/eventlog.jsonl"),
		FileIndexSourcePath: getEnv("FILE_INDEX_SOURCE_PATH", "data/fileindex.jsonl"),
		EventLogCacheTTL:    getDuration("EVENT_LOG_CACHE_TTL", 2*time.Minute),

		PolicyRulesPath: getEnv("POLICY_RULES_PATH", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "sysquery"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "sysquery"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		AuditEnabled:     getBoolEnv("AUDIT_ENABLED", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheEnabled:  getBoolEnv("CACHE_ENABLED", false),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "sysquery-service"),
		RelayEnabled:      getBoolEnv("RELAY_ENABLED", false),
		RelayInputTopic:   getEnv("RELAY_INPUT_TOPIC", "raw-records"),
		RelayOutputTopic:  getEnv("RELAY_OUTPUT_TOPIC", "anonymized-records"),
		AuditEventTopic:   getEnv("AUDIT_EVENT_TOPIC", "query-audit"),
		AuditEventEnabled: getBoolEnv("AUDIT_EVENT_ENABLED", false),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		AuthRequired:     getBoolEnv("AUTH_REQUIRED", false),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
