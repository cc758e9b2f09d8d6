package config

const (
	EnvPrefix = "STOREFRONT"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"

	EnvEventsSink        = "STOREFRONT_EVENTS_SINK"
	EnvKafkaBrokers      = "STOREFRONT_KAFKA_BROKERS"
	EnvPubSubOrdersTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvCheckoutAttempts  = "STOREFRONT_CHECKOUT_MAX_ATTEMPTS"
	EnvTracingEnabled    = "STOREFRONT_TRACING_ENABLED"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EventSinkPubSub = "pubsub"
	EventSinkKafka  = "kafka"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
