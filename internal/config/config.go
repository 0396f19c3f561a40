package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Canvas    CanvasConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Redis     RedisConfig
}

// RedisConfig configures the optional presence/activity mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// AuthConfig configures access-token validation for the hub handshake.
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig holds settings for the collaboration socket.
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
}

// CanvasConfig holds whiteboard canvas engine settings.
type CanvasConfig struct {
	SaveTimeout      time.Duration
	AutoSaveQuiet    time.Duration
	ExportWidth      int
	ExportHeight     int
	HistoryPageLimit int
	MaxMessageLength int
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// Load reads configuration from the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	jwtSecret := getRequiredEnv("JWT_SECRET")
	if jwtSecret == "change-this-secret-in-production" {
		log.Fatal("JWT_SECRET must be changed from default value in production")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			SendQueueSize:   getInt("WS_SEND_QUEUE_SIZE", 256),
			PingInterval:    getDuration("WS_PING_INTERVAL", 30*time.Second),
			PongTimeout:     getDuration("WS_PONG_TIMEOUT", 60*time.Second),
			WriteTimeout:    getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
		},
		Canvas: CanvasConfig{
			SaveTimeout:      getDuration("CANVAS_SAVE_TIMEOUT", 5*time.Second),
			AutoSaveQuiet:    getDuration("CANVAS_AUTOSAVE_QUIET", 5*time.Minute),
			ExportWidth:      getInt("CANVAS_EXPORT_WIDTH", 1920),
			ExportHeight:     getInt("CANVAS_EXPORT_HEIGHT", 1080),
			HistoryPageLimit: getInt("CANVAS_HISTORY_PAGE_LIMIT", 20),
			MaxMessageLength: getInt("CHAT_MAX_MESSAGE_LENGTH", 2000),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			Enabled:  getBool("REDIS_ENABLED", false),
		},
	}
}

// getRequiredEnv fetches a mandatory environment variable or exits.
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("required environment variable %s is not set", key)
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// bare numbers are treated as seconds
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
