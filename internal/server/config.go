package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/realtime"
)

// Execution contexts select which backend URL the process talks to.
const (
	ContextServer = "server"
	ContextClient = "client"
)

const (
	// DefaultServerAPIURL is the backend address on the service network.
	DefaultServerAPIURL = "http://backend:8000/api"
	// DefaultClientAPIURL is the publicly reachable backend address.
	DefaultClientAPIURL = "http://localhost:8000/api"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheBadger   = "badger"
	CacheDynamoDB = "dynamodb"
)

// Config holds gateway configuration from environment variables.
type Config struct {
	Port     string
	GRPCPort string

	// Context is "server" (service network) or "client" (public URL).
	Context      string
	ServerAPIURL string
	PublicAPIURL string
	WSURL        string
	WSPath       string

	CacheNamespace string
	CacheBackend   string
	CacheDir       string
	CacheMaxAge    time.Duration

	AWSRegion      string
	AWSEndpointURL string // For LocalStack
	DynamoDBTable  string

	WarmEndpoints string
	WarmOnStart   bool
	ProbeInterval time.Duration

	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// HTTP server timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads configuration from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Port:              getEnv("GAIA_PORT", "3000"),
		GRPCPort:          getEnv("GAIA_GRPC_PORT", "9090"),
		Context:           getEnv("GAIA_CONTEXT", ContextServer),
		ServerAPIURL:      getEnv("SERVER_API_URL", ""),
		PublicAPIURL:      getEnv("NEXT_PUBLIC_API_URL", ""),
		WSURL:             getEnv("GAIA_WS_URL", ""),
		WSPath:            getEnv("GAIA_WS_PATH", realtime.DefaultPath),
		CacheNamespace:    getEnv("GAIA_CACHE_NAMESPACE", "gaia"),
		CacheBackend:      getEnv("GAIA_CACHE_BACKEND", CacheMemory),
		CacheDir:          getEnv("GAIA_CACHE_DIR", ""),
		CacheMaxAge:       getEnvDuration("GAIA_CACHE_MAX_AGE", time.Hour),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:    getEnv("AWS_ENDPOINT_URL", ""), // Empty = real AWS
		DynamoDBTable:     getEnv("DYNAMODB_TABLE", "gaia-cache"),
		WarmEndpoints:     getEnv("GAIA_WARM_ENDPOINTS", ""),
		WarmOnStart:       getEnvBool("GAIA_WARM_ON_START", true),
		ProbeInterval:     getEnvDuration("GAIA_PROBE_INTERVAL", 15*time.Second),
		ReconnectAttempts: getEnvInt("GAIA_WS_RECONNECT_ATTEMPTS", realtime.DefaultReconnectAttempts),
		ReconnectDelay:    getEnvDuration("GAIA_WS_RECONNECT_DELAY", realtime.DefaultReconnectDelay),
		ReadTimeout:       getEnvDuration("GAIA_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getEnvDuration("GAIA_WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getEnvDuration("GAIA_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:   getEnvDuration("GAIA_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// ResolveBaseURL picks the backend base URL for the configured context.
// The server context prefers the service-network URL, the client context
// the public one; both fall back to a default. Trailing slashes are stripped.
func (c Config) ResolveBaseURL() string {
	var base string
	if c.Context == ContextClient {
		base = firstNonEmpty(c.PublicAPIURL, DefaultClientAPIURL)
	} else {
		base = firstNonEmpty(c.ServerAPIURL, c.PublicAPIURL, DefaultServerAPIURL)
	}
	return client.TrimBaseURL(base)
}

// ResolveRealtimeURL returns the websocket endpoint of the backend channel.
func (c Config) ResolveRealtimeURL() (string, error) {
	base := c.WSURL
	if base == "" {
		base = c.ResolveBaseURL()
	}
	return realtime.DeriveURL(base, c.WSPath)
}

// Validate checks option values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Context {
	case ContextServer, ContextClient:
	default:
		return fmt.Errorf("GAIA_CONTEXT must be %q or %q, got %q", ContextServer, ContextClient, c.Context)
	}
	switch c.CacheBackend {
	case CacheMemory, CacheDynamoDB:
	case CacheBadger:
		if c.CacheDir == "" {
			return fmt.Errorf("GAIA_CACHE_DIR is required for the badger cache backend")
		}
	default:
		return fmt.Errorf("unknown GAIA_CACHE_BACKEND %q", c.CacheBackend)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
