package config

// EnvPrefix is empty because every field carries its fully-qualified
// GROUPBUY_ variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EmailProviderLog      = "log"
	EmailProviderSendgrid = "sendgrid"
	EmailProviderSMTP     = "smtp"
)

const (
	EnvAppEnv        = "GROUPBUY_APP_ENV"
	EnvPort          = "GROUPBUY_APP_PORT"
	EnvDBDSN         = "GROUPBUY_DB_DSN"
	EnvDBHost        = "GROUPBUY_DB_HOST"
	EnvDBUser        = "GROUPBUY_DB_USER"
	EnvDBName        = "GROUPBUY_DB_NAME"
	EnvDBPassword    = "GROUPBUY_DB_PASSWORD"
	EnvRedisURL      = "GROUPBUY_REDIS_URL"
	EnvUseSQLite     = "GROUPBUY_USE_SQLITE"
	EnvEmailProvider = "GROUPBUY_EMAIL_PROVIDER"
	EnvFanOut        = "GROUPBUY_NOTIFICATIONS_FANOUT_CONCURRENCY"
	EnvCacheGOTTL    = "GROUPBUY_CACHE_GROUP_ORDER_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
