package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "AKTIONFILM"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv    = "AKTIONFILM_APP_ENV"
	EnvAppPort   = "AKTIONFILM_APP_PORT"
	EnvRedisURL  = "AKTIONFILM_REDIS_URL"
	EnvJWTSecret = "AKTIONFILM_JWT_SECRET"
	EnvJWTIssuer = "AKTIONFILM_JWT_ISSUER"

	EnvDBDSN  = "AKTIONFILM_DB_DSN"
	EnvDBHost = "AKTIONFILM_DB_HOST"
	EnvDBUser = "AKTIONFILM_DB_USER"
	EnvDBName = "AKTIONFILM_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
