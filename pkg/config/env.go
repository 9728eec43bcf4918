package config

// EnvPrefix is passed to envconfig; individual tags carry the full names.
const EnvPrefix = "MERCATO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "MERCATO_APP_ENV"
	EnvPort                   = "MERCATO_APP_PORT"
	EnvLogLevel               = "MERCATO_LOG_LEVEL"
	EnvDBDSN                  = "MERCATO_DB_DSN"
	EnvDBHost                 = "MERCATO_DB_HOST"
	EnvDBUser                 = "MERCATO_DB_USER"
	EnvDBName                 = "MERCATO_DB_NAME"
	EnvRedisURL               = "MERCATO_REDIS_URL"
	EnvJWTSecret              = "MERCATO_JWT_SECRET"
	EnvJWTIssuer              = "MERCATO_JWT_ISSUER"
	EnvJWTExpMins             = "MERCATO_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MERCATO_REFRESH_TOKEN_TTL_MINUTES"
	EnvStripeAPIKey           = "MERCATO_STRIPE_API_KEY"
	EnvStripeWebhookSecret    = "MERCATO_STRIPE_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
