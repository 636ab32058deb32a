package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	JWTKey    string
	SaltRound int

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	OtpTTLMinutes   int // verification code lifetime
	StagingTTLHours int // retention window for unconfirmed registrations
	OtpLength       int

	EmailSender    string
	EmailPassword  string // SMTP app password
	SendgridApiKey string // if set, SendGrid is used instead of SMTP

	OcrApiURL         string // primary (remote) OCR backend
	OcrApiKey         string
	LocalOcrURL       string // secondary (self-hosted) OCR backend
	OcrTimeoutSeconds int    // per-backend timeout

	StorageDriver string // "local" or "s3"
	UploadDir     string
	PublicBaseURL string

	AwsRegion          string
	AwsS3Bucket        string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "scraphub"),
		DBPort:     getEnv("DB_PORT", "5432"),

		OtpTTLMinutes:   getEnvInt("OTP_TTL_MINUTES", 15),
		StagingTTLHours: getEnvInt("STAGING_TTL_HOURS", 24),
		OtpLength:       getEnvInt("OTP_LENGTH", 6),

		EmailSender:    getEnv("EMAIL_SENDER", ""),
		EmailPassword:  getEnv("EMAIL_PASSWORD", ""),
		SendgridApiKey: getEnv("SENDGRID_API_KEY", ""),

		OcrApiURL:         getEnv("OCR_API_URL", "https://api.ocr.space/parse/imageurl"),
		OcrApiKey:         getEnv("OCR_API_KEY", ""),
		LocalOcrURL:       getEnv("LOCAL_OCR_URL", "http://localhost:8884/ocr"),
		OcrTimeoutSeconds: getEnvInt("OCR_TIMEOUT_SECONDS", 20),

		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		UploadDir:     getEnv("UPLOAD_DIR", "./public/uploads"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),

		AwsRegion:          getEnv("AWS_REGION", "ap-south-1"),
		AwsS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AwsAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AwsSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.StorageDriver == "s3" && AppConfig.AwsS3Bucket == "" {
		log.Println("Warning: STORAGE_DRIVER is s3 but AWS_S3_BUCKET is empty.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
