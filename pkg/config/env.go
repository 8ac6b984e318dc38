package config

// EnvPrefix is the envconfig prefix for every variable this service reads.
const EnvPrefix = "MARKETPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "MARKETPAY_APP_ENV"
	EnvAppPort  = "MARKETPAY_APP_PORT"
	EnvLogLevel = "MARKETPAY_LOG_LEVEL"

	EnvDBDSN      = "MARKETPAY_DB_DSN"
	EnvDBHost     = "MARKETPAY_DB_HOST"
	EnvDBPort     = "MARKETPAY_DB_PORT"
	EnvDBUser     = "MARKETPAY_DB_USER"
	EnvDBPassword = "MARKETPAY_DB_PASSWORD"
	EnvDBName     = "MARKETPAY_DB_NAME"

	EnvRedisURL = "MARKETPAY_REDIS_URL"

	EnvRazorpayKeyID         = "MARKETPAY_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "MARKETPAY_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "MARKETPAY_RAZORPAY_WEBHOOK_SECRET"

	EnvGCPProjectID       = "MARKETPAY_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "MARKETPAY_PUBSUB_BILLING_TOPIC"
	EnvPubSubBillingSub   = "MARKETPAY_PUBSUB_BILLING_SUBSCRIPTION"
)

// legacyDBEnvVars are the discrete connection vars accepted when no DSN is set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
