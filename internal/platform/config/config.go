package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	AppName  string
	LogLevel string

	APIPort      string
	ClientOrigin string
	JWTKey       []byte
	JWTExp       time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadsDir string

	ReminderQueueName      string
	ApprovalLockKey        string
	ApprovalLockTTLSeconds int
	StatusCacheTTLSeconds  int
	PhaseTickSeconds       int

	SendgridAPIKey string
	MailFrom       string

	AdminEmail string // Signing up with this address grants the admin role
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("ENV", "dev")
	v.SetDefault("APP_NAME", "ProConnect")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("CLIENT_ORIGIN", "http://localhost:5173")
	v.SetDefault("JWT_SECRET", "defaultsecret")
	v.SetDefault("JWT_EXPIRATION_HOURS", 72)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "proconnect")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("REMINDER_QUEUE_NAME", "contest_reminders_queue")
	v.SetDefault("APPROVAL_LOCK_KEY", "contest:approval_lock")
	v.SetDefault("APPROVAL_LOCK_TTL_SECONDS", 30)
	v.SetDefault("STATUS_CACHE_TTL_SECONDS", 60)
	v.SetDefault("PHASE_TICK_SECONDS", 60)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM", "noreply@proconnect.local")
	v.SetDefault("ADMIN_EMAIL", "")

	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	c := &Config{
		Env:                    strings.ToLower(v.GetString("ENV")),
		AppName:                v.GetString("APP_NAME"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		APIPort:                v.GetString("API_PORT"),
		ClientOrigin:           v.GetString("CLIENT_ORIGIN"),
		JWTKey:                 []byte(v.GetString("JWT_SECRET")),
		JWTExp:                 time.Duration(v.GetInt("JWT_EXPIRATION_HOURS")) * time.Hour,
		DBHost:                 v.GetString("DB_HOST"),
		DBPort:                 v.GetString("DB_PORT"),
		DBUser:                 v.GetString("DB_USER"),
		DBPassword:             v.GetString("DB_PASSWORD"),
		DBName:                 v.GetString("DB_NAME"),
		DBSslMode:              v.GetString("DB_SSLMODE"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		UploadsDir:             v.GetString("UPLOADS_DIR"),
		ReminderQueueName:      v.GetString("REMINDER_QUEUE_NAME"),
		ApprovalLockKey:        v.GetString("APPROVAL_LOCK_KEY"),
		ApprovalLockTTLSeconds: v.GetInt("APPROVAL_LOCK_TTL_SECONDS"),
		StatusCacheTTLSeconds:  v.GetInt("STATUS_CACHE_TTL_SECONDS"),
		PhaseTickSeconds:       v.GetInt("PHASE_TICK_SECONDS"),
		SendgridAPIKey:         v.GetString("SENDGRID_API_KEY"),
		MailFrom:               v.GetString("MAIL_FROM"),
		AdminEmail:             v.GetString("ADMIN_EMAIL"),
	}

	c.DBConnStr = "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSslMode
	return c
}

func (c *Config) ApprovalLockTTL() time.Duration {
	return time.Duration(c.ApprovalLockTTLSeconds) * time.Second
}

func (c *Config) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSeconds) * time.Second
}

func (c *Config) PhaseTick() time.Duration {
	return time.Duration(c.PhaseTickSeconds) * time.Second
}
