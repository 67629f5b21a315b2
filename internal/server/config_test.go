package server

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GAIA_PORT", "3000")
	t.Setenv("GAIA_CONTEXT", ContextServer)
	t.Setenv("GAIA_CACHE_BACKEND", CacheMemory)
	t.Setenv("GAIA_WS_PATH", "")
	os.Unsetenv("GAIA_WS_PATH")
	t.Setenv("GAIA_WARM_ON_START", "not-a-bool")
	t.Setenv("GAIA_PROBE_INTERVAL", "5s")
	t.Setenv("GAIA_WS_RECONNECT_ATTEMPTS", "x")

	cfg := LoadConfig()

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if !cfg.WarmOnStart {
		t.Error("WarmOnStart should fall back to true on a bad value")
	}
	if cfg.ProbeInterval != 5*time.Second {
		t.Errorf("ProbeInterval = %v, want 5s", cfg.ProbeInterval)
	}
	if cfg.WSPath != "/ws/socket.io/" {
		t.Errorf("WSPath = %q, want /ws/socket.io/", cfg.WSPath)
	}
	if cfg.ReconnectAttempts != 10 {
		t.Errorf("ReconnectAttempts = %d, want 10", cfg.ReconnectAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "server default",
			cfg:  Config{Context: ContextServer},
			want: "http://backend:8000/api",
		},
		{
			name: "client default",
			cfg:  Config{Context: ContextClient},
			want: "http://localhost:8000/api",
		},
		{
			name: "server prefers SERVER_API_URL",
			cfg:  Config{Context: ContextServer, ServerAPIURL: "http://api.internal/api/", PublicAPIURL: "https://gaia.example/api"},
			want: "http://api.internal/api",
		},
		{
			name: "server falls back to public url",
			cfg:  Config{Context: ContextServer, PublicAPIURL: "https://gaia.example/api"},
			want: "https://gaia.example/api",
		},
		{
			name: "client ignores SERVER_API_URL",
			cfg:  Config{Context: ContextClient, ServerAPIURL: "http://api.internal/api"},
			want: "http://localhost:8000/api",
		},
		{
			name: "trailing slashes stripped",
			cfg:  Config{Context: ContextClient, PublicAPIURL: "https://gaia.example/api///"},
			want: "https://gaia.example/api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolveBaseURL(); got != tt.want {
				t.Errorf("ResolveBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRealtimeURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "derived from base url",
			cfg:  Config{Context: ContextClient, PublicAPIURL: "https://gaia.example/api"},
			want: "wss://gaia.example/ws/socket.io/?EIO=4&transport=websocket",
		},
		{
			name: "explicit ws url",
			cfg:  Config{Context: ContextServer, WSURL: "ws://events:9000", WSPath: "/stream"},
			want: "ws://events:9000/stream?EIO=4&transport=websocket",
		},
		{
			name: "path query kept",
			cfg:  Config{Context: ContextServer, WSURL: "http://backend:8000", WSPath: "/ws/socket.io/?EIO=4&transport=websocket"},
			want: "ws://backend:8000/ws/socket.io/?EIO=4&transport=websocket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveRealtimeURL()
			if err != nil {
				t.Fatalf("ResolveRealtimeURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveRealtimeURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Context: ContextServer, CacheBackend: CacheMemory}, false},
		{"dynamodb", Config{Context: ContextServer, CacheBackend: CacheDynamoDB}, false},
		{"badger with dir", Config{Context: ContextServer, CacheBackend: CacheBadger, CacheDir: "/tmp/gaia"}, false},
		{"badger without dir", Config{Context: ContextServer, CacheBackend: CacheBadger}, true},
		{"unknown backend", Config{Context: ContextServer, CacheBackend: "redis"}, true},
		{"unknown context", Config{Context: "edge", CacheBackend: CacheMemory}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
