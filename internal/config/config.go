package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string
	// AppBaseURL is the public URL of the web app; invite accept/decline
	// links are built against it.
	AppBaseURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiryDays     int

	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	ResendAPIKey  string // when set, mail goes through the Resend API instead of SMTP
	MailFromName  string

	GoogleClientID string

	SNSRegion        string
	SecurityTopicARN string // optional break-glass alert topic

	// AdminAlertEmails is the fixed-admin registry: addresses that receive
	// invite decline/accept notifications and password-reset security alerts.
	AdminAlertEmails []string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users                string
	Sessions             string
	VerificationSessions string
	RoleGrants           string
	LoginAttempts        string
	Products             string
	Files                string
	Notifications        string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:    getEnv("APP_PORT", "3000"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:5173"),

		AWSRegion:      getEnv("AWS_REGION", "eu-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:                getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:             getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			VerificationSessions: getEnv("DYNAMO_TABLE_VERIFICATION_SESSIONS", "verification_sessions"),
			RoleGrants:           getEnv("DYNAMO_TABLE_ROLE_GRANTS", "role_grants"),
			LoginAttempts:        getEnv("DYNAMO_TABLE_LOGIN_ATTEMPTS", "login_attempts"),
			Products:             getEnv("DYNAMO_TABLE_PRODUCTS", "products"),
			Files:                getEnv("DYNAMO_TABLE_FILES", "files"),
			Notifications:        getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "catalog-photos"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@emmegi.example"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		MailFromName: getEnv("MAIL_FROM_NAME", "Emmegi S.r.l."),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		SNSRegion:        getEnv("SNS_REGION", "eu-south-1"),
		SecurityTopicARN: getEnv("SNS_SECURITY_TOPIC_ARN", ""),

		AdminAlertEmails: splitList(getEnv("ADMIN_ALERT_EMAILS", "")),
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// IsFixedAdmin reports whether email belongs to the fixed-admin registry.
// The comparison is against the normalized (lower-cased) address.
func (c *Config) IsFixedAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminAlertEmails {
		if a == email {
			return true
		}
	}
	return false
}

// OtherFixedAdmins returns every registry address except the given one.
// Used for security-alert fan-out.
func (c *Config) OtherFixedAdmins(email string) []string {
	email = strings.ToLower(strings.TrimSpace(email))
	var out []string
	for _, a := range c.AdminAlertEmails {
		if a != email {
			out = append(out, a)
		}
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
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
