package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SecretKey string // Required: signs activation tokens and the rm cookie
	WebRoot   string // Required: customer portal base URL used in activation links

	DatabaseFile string // Optional: path to SQLite database file (default: ./portal.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	CPHostname    string   // Optional: hostname of the constituent portal origin; those logins never consult LDAP
	SecureCookies bool     // Optional: Secure flag on auth cookies (default: true)
	Admins        []string // Optional: emails that receive the Administrator role at registration
	TOTPIssuer    string   // Optional: issuer label in authenticator apps (default: CERT-EU)

	SessionTTL    time.Duration // Optional: session cookie lifetime (default: 12h)
	RememberTTL   time.Duration // Optional: rm cookie lifetime (default: 48h)
	ActivationTTL time.Duration // Optional: set-password token lifetime (default: 72h)

	LDAPEnabled      bool // Optional: try LDAP bind before local credentials (default: false)
	LDAPURL          string
	LDAPBindDN       string
	LDAPBindPassword string
	LDAPBaseDN       string
	LDAPSkipVerify   bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	BOSHEnabled      bool // Optional: serve chat prebind sessions (default: false)
	BOSHServiceURL   string
	BOSHCPServiceURL string
	BOSHJID          string
	BOSHPassword     string
	BOSHRooms        []string
	BOSHCPRooms      []string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired session purge interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SecretKey: os.Getenv("PORTAL_SECRET_KEY"),
		WebRoot:   getEnvOrDefault("CP_WEB_ROOT", "https://localhost"),

		DatabaseFile: getEnvOrDefault("PORTAL_DATABASE_FILE", "portal.db"),
		PepperFile:   getEnvOrDefault("PORTAL_PEPPER_FILE", "pepper"),

		CPHostname:    os.Getenv("CP_HOSTNAME"),
		SecureCookies: getEnvBoolOrDefault("SECURE_COOKIES", true),
		Admins:        getEnvList("PORTAL_ADMINS"),
		TOTPIssuer:    getEnvOrDefault("TOTP_ISSUER", "CERT-EU"),

		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", 12*time.Hour),
		RememberTTL:   getEnvDurationOrDefault("REMEMBER_TTL", 48*time.Hour),
		ActivationTTL: getEnvDurationOrDefault("ACTIVATION_TTL", 72*time.Hour),

		LDAPEnabled:      getEnvBoolOrDefault("LDAP_AUTH_ENABLED", false),
		LDAPURL:          os.Getenv("LDAP_URL"),
		LDAPBindDN:       os.Getenv("LDAP_BIND_DN"),
		LDAPBindPassword: os.Getenv("LDAP_BIND_PASSWORD"),
		LDAPBaseDN:       os.Getenv("LDAP_BASE_DN"),
		LDAPSkipVerify:   getEnvBoolOrDefault("LDAP_SKIP_VERIFY", false),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 25),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "cert-eu@ec.europa.eu"),

		BOSHEnabled:      getEnvBoolOrDefault("BOSH_ENABLED", false),
		BOSHServiceURL:   os.Getenv("BOSH_SERVICE"),
		BOSHCPServiceURL: os.Getenv("CP_BOSH_SERVICE"),
		BOSHJID:          os.Getenv("BOSH_JID"),
		BOSHPassword:     os.Getenv("BOSH_PASSWORD"),
		BOSHRooms:        getEnvList("BOSH_ROOMS"),
		BOSHCPRooms:      getEnvList("CP_BOSH_ROOMS"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are taken as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
