package config

// EnvPrefix namespaces all environment variables consumed by envconfig.
const EnvPrefix = "CHANNELSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CHANNELSYNC_DB_DSN"
	EnvDBHost = "CHANNELSYNC_DB_HOST"
	EnvDBUser = "CHANNELSYNC_DB_USER"
	EnvDBName = "CHANNELSYNC_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	ConflictPolicyAutoCancel = "auto_cancel"
	ConflictPolicyManual     = "manual"
)
