package config

const (
	EnvPrefix = "SAFLIIX"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv         = "SAFLIIX_APP_ENV"
	EnvAppPort        = "SAFLIIX_APP_PORT"
	EnvBackendBaseURL = "SAFLIIX_BACKEND_BASE_URL"
)
