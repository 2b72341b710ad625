package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort     string
	AppEnv      string
	AppName     string // TOTP issuer and email sender display name
	LogLevel    string
	FrontendURL string // base for links in verification and reset emails

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SessionStore  string // "dynamo" | "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret         string // HS256 when set, otherwise RS256 from the key paths
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string

	Auth AuthPolicy

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion           string
	SNSSecurityTopicARN string // empty disables security event publishing

	AllowedOrigins []string // CORS allowed origins
	CookieSecure   bool
	CookieDomain   string
	TrustedProxies []string // peers whose X-Forwarded-For / X-Real-Ip are believed
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts string
	Sessions string
}

// AuthPolicy groups every expiry, threshold and work factor the auth flows use.
type AuthPolicy struct {
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	TempAuthTTL          time.Duration
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
	MaxFailedLogins      int
	LockoutDuration      time.Duration
	BcryptCost           int
	BackupCodeCount      int
	BackupCodeCost       int
	TOTPSkew             int
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:     getEnv("APP_PORT", "3000"),
		AppEnv:      getEnv("APP_ENV", "development"),
		AppName:     getEnv("APP_NAME", "CloudCost"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts: getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},

		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", "dynamo")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTIssuer:         getEnv("JWT_ISSUER", "cloudcost-auth"),

		Auth: AuthPolicy{
			AccessTokenTTL:       getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL:      getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			TempAuthTTL:          getEnvDuration("TEMP_AUTH_TTL", 5*time.Minute),
			PasswordResetTTL:     getEnvDuration("PASSWORD_RESET_TTL", 15*time.Minute),
			EmailVerificationTTL: getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour),
			MaxFailedLogins:      getEnvInt("MAX_FAILED_LOGINS", 5),
			LockoutDuration:      getEnvDuration("LOCKOUT_DURATION", 30*time.Minute),
			BcryptCost:           getEnvInt("BCRYPT_COST", 12),
			BackupCodeCount:      getEnvInt("BACKUP_CODE_COUNT", 10),
			BackupCodeCost:       getEnvInt("BACKUP_CODE_COST", 10),
			TOTPSkew:             getEnvInt("TOTP_SKEW", 2),
		},

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:           getEnv("SNS_REGION", "us-east-1"),
		SNSSecurityTopicARN: getEnv("SNS_SECURITY_TOPIC_ARN", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),
		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// getEnvList splits a comma-separated variable; unset yields nil.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
