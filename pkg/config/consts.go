package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "GPUFORGE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "GPUFORGE_APP_ENV"
	EnvDBDSN  = "GPUFORGE_DB_DSN"
	EnvDBHost = "GPUFORGE_DB_HOST"
	EnvDBUser = "GPUFORGE_DB_USER"
	EnvDBName = "GPUFORGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
