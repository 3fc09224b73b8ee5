package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64

	SpeciesCatalogPath string

	// SSN API settings. SSNMock short-circuits every outbound call with the
	// local mock responder.
	SSNBaseURL     string
	SSNUser        string
	SSNCompanyCode string
	SSNPassword    string
	SSNMock        bool
	SSNTimeout     time.Duration

	// Artifact storage for uploaded spreadsheets and generated wire payloads.
	ArtifactProvider string // "local", "minio" or "discard"
	ArtifactDir      string
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool

	// Rectification poller settings.
	PollerEnabled       bool
	PollerInterval      time.Duration
	PollerStartHour     int
	PollerEndHour       int
	PollerItemDelay     time.Duration
	ApprovedStatusCodes []string
	RejectedStatusCodes []string

	EmailServiceProvider string

	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain        string
	MailgunPrivateAPIKey string

	SenderEmail string
	SenderName  string

	// Recipient of rectification outcome notices.
	NotifyEmail string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	ssnTimeout := getEnvAsDuration("SSN_TIMEOUT", 30*time.Second)
	pollerInterval := getEnvAsDuration("POLLER_INTERVAL", 30*time.Minute)
	pollerItemDelay := getEnvAsDuration("POLLER_ITEM_DELAY", 2*time.Second)

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./ssnreport.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		SpeciesCatalogPath: getEnv("SPECIES_CATALOG_PATH", "data/species.json"),

		SSNBaseURL:     getEnv("SSN_BASE_URL", "https://testri.ssn.gob.ar/api"),
		SSNUser:        getEnv("SSN_USER", ""),
		SSNCompanyCode: getEnv("SSN_COMPANY_CODE", ""),
		SSNPassword:    getEnv("SSN_PASSWORD", ""),
		SSNMock:        getEnvAsBool("SSN_MOCK", true),
		SSNTimeout:     ssnTimeout,

		ArtifactProvider: getEnv("ARTIFACT_PROVIDER", "local"),
		ArtifactDir:      getEnv("ARTIFACT_DIR", "./artifacts"),
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:      getEnv("MINIO_BUCKET", "ssnreport-artifacts"),
		MinioUseSSL:      getEnvAsBool("MINIO_USE_SSL", false),

		PollerEnabled:       getEnvAsBool("POLLER_ENABLED", true),
		PollerInterval:      pollerInterval,
		PollerStartHour:     getEnvAsInt("POLLER_START_HOUR", 9),
		PollerEndHour:       getEnvAsInt("POLLER_END_HOUR", 18),
		PollerItemDelay:     pollerItemDelay,
		ApprovedStatusCodes: getEnvAsList("APPROVED_STATUS_CODES", "RECTIFICADA,A"),
		RejectedStatusCodes: getEnvAsList("REJECTED_STATUS_CODES", "RECHAZADA,R"),

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "mock"),

		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),

		SenderEmail: getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:  getEnv("SENDER_NAME", "SSN Report"),

		NotifyEmail: getEnv("NOTIFY_EMAIL", ""),
	}

	if !Cfg.SSNMock {
		if Cfg.SSNUser == "" || Cfg.SSNCompanyCode == "" || Cfg.SSNPassword == "" {
			log.Fatalf("FATAL: SSN_USER, SSN_COMPANY_CODE and SSN_PASSWORD are required when SSN_MOCK is false.")
		}
	}

	if Cfg.EmailServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" || Cfg.MailgunPrivateAPIKey == "" {
			log.Fatalf("FATAL: MAILGUN_DOMAIN and MAILGUN_PRIVATE_API_KEY are required when EMAIL_SERVICE_PROVIDER is 'mailgun'.")
		}
	}

	if Cfg.PollerStartHour < 0 || Cfg.PollerEndHour > 24 || Cfg.PollerStartHour >= Cfg.PollerEndHour {
		log.Printf("WARNING: Invalid poller business hours [%d,%d). Using default [9,18).", Cfg.PollerStartHour, Cfg.PollerEndHour)
		Cfg.PollerStartHour = 9
		Cfg.PollerEndHour = 18
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, SSNMock=%v, ArtifactProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.SSNMock, Cfg.ArtifactProvider)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	valueStr := getEnv(key, fallback)
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
