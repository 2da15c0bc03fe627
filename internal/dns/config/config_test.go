package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolver_Defaults(t *testing.T) {
	cfg, err := LoadResolver()
	if err != nil {
		t.Fatalf("LoadResolver() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.Listen != "127.0.0.1:21000" {
		t.Errorf("expected Listen=127.0.0.1:21000, got %q", cfg.Listen)
	}
	if cfg.Transport != "udp" {
		t.Errorf("expected Transport=udp, got %q", cfg.Transport)
	}
	if cfg.Upstream != "127.0.0.1:22000" {
		t.Errorf("expected Upstream=127.0.0.1:22000, got %q", cfg.Upstream)
	}
	if cfg.StaticTTL != 60 {
		t.Errorf("expected StaticTTL=60, got %d", cfg.StaticTTL)
	}
	if cfg.TxID != "sequential" {
		t.Errorf("expected TxID=sequential, got %q", cfg.TxID)
	}
	if cfg.PendingTimeout != 0 {
		t.Errorf("expected pending timeout disabled, got %v", cfg.PendingTimeout)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("expected TickInterval=1s, got %v", cfg.TickInterval)
	}
	if !cfg.ShowTable {
		t.Errorf("expected ShowTable=true")
	}
	if cfg.JournalPath != "" || cfg.SentryDSN != "" {
		t.Errorf("expected journal and sentry disabled by default")
	}
}

func TestLoadAuthority_Defaults(t *testing.T) {
	cfg, err := LoadAuthority()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:22000", cfg.Listen)
	assert.Empty(t, cfg.Upstream, "authority never forwards")
	assert.Equal(t, "zones/authority", cfg.ZoneDir)
	assert.Equal(t, "udp", cfg.Transport)
	assert.False(t, cfg.ShowTable)
}

func TestLoadResolver_ValidOverrides(t *testing.T) {
	t.Setenv("DNS_ENV", "dev")
	t.Setenv("DNS_LOG_LEVEL", "debug")
	t.Setenv("DNS_LISTEN", "127.0.0.1:9953")
	t.Setenv("DNS_UPSTREAM", "10.0.0.2:53")
	t.Setenv("DNS_ZONE_DIR", "/tmp/zones")
	t.Setenv("DNS_WATCH_ZONES", "true")
	t.Setenv("DNS_STATIC_TTL", "120")
	t.Setenv("DNS_TXID", "random")
	t.Setenv("DNS_PENDING_TIMEOUT", "5s")
	t.Setenv("DNS_MAX_PENDING", "16")
	t.Setenv("DNS_TICK_INTERVAL", "250ms")
	t.Setenv("DNS_SHOW_TABLE", "false")
	t.Setenv("DNS_JOURNAL_PATH", "/tmp/journal.db")

	cfg, err := LoadResolver()
	if err != nil {
		t.Fatalf("LoadResolver() returned error: %v", err)
	}

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9953", cfg.Listen)
	assert.Equal(t, "10.0.0.2:53", cfg.Upstream)
	assert.Equal(t, "/tmp/zones", cfg.ZoneDir)
	assert.True(t, cfg.WatchZones)
	assert.Equal(t, uint32(120), cfg.StaticTTL)
	assert.Equal(t, "random", cfg.TxID)
	assert.Equal(t, 5*time.Second, cfg.PendingTimeout)
	assert.Equal(t, 16, cfg.MaxPending)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.False(t, cfg.ShowTable)
	assert.Equal(t, "/tmp/journal.db", cfg.JournalPath)
}

func TestLoadResolver_InvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad env":      {"DNS_ENV", "staging"},
		"bad level":    {"DNS_LOG_LEVEL", "trace"},
		"bad listen":   {"DNS_LISTEN", "localhost"},
		"port zero":    {"DNS_LISTEN", "127.0.0.1:0"},
		"bad upstream": {"DNS_UPSTREAM", "nowhere:53"},
		"bad txid":     {"DNS_TXID", "guess"},
		"zero ttl":     {"DNS_STATIC_TTL", "0"},
		"zero tick":    {"DNS_TICK_INTERVAL", "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadResolver()
			assert.Error(t, err)
		})
	}
}

func TestLoadStub(t *testing.T) {
	cfg, err := LoadStub()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:21000", cfg.Resolver)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "sequential", cfg.TxID)

	t.Setenv("DNS_STUB_TIMEOUT", "500ms")
	t.Setenv("DNS_STUB_RESOLVER", "127.0.0.1:5353")
	cfg, err = LoadStub()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "127.0.0.1:5353", cfg.Resolver)
}

func TestLoadSpoof(t *testing.T) {
	cfg, err := LoadSpoof()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:21000", cfg.Target)
	assert.Equal(t, "shop.amazone.com", cfg.Domain)
	assert.Equal(t, "1.1.1.1", cfg.Result)
	assert.Equal(t, uint32(3600), cfg.TTL)
	assert.Equal(t, uint32(0), cfg.WindowStart)
	assert.Equal(t, uint32(20), cfg.WindowSize)

	// continuous flood: whole window per burst, short pause, no round limit
	assert.Equal(t, 0, cfg.Rounds)
	assert.Equal(t, 10*time.Millisecond, cfg.Pause)
	assert.GreaterOrEqual(t, cfg.Burst, int(cfg.WindowSize))
	assert.Equal(t, float64(2000), cfg.Rate)

	t.Setenv("DNS_SPOOF_WINDOW_START", "100")
	t.Setenv("DNS_SPOOF_ROUNDS", "3")
	t.Setenv("DNS_SPOOF_TYPE", "aaaa")
	t.Setenv("DNS_SPOOF_RESULT", "::1")
	cfg, err = LoadSpoof()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), cfg.WindowStart)
	assert.Equal(t, 3, cfg.Rounds)
	assert.Equal(t, "aaaa", cfg.Type)
}

func TestLoadSpoof_RejectsBadType(t *testing.T) {
	t.Setenv("DNS_SPOOF_TYPE", "MX")
	_, err := LoadSpoof()
	assert.Error(t, err)
}

func TestEnvLoader_SplitsLists(t *testing.T) {
	t.Setenv("DNS_ZONE_DIR", "a, b")
	k := koanf.New(".")
	require.NoError(t, envLoader(k, ServerPrefix))
	assert.Equal(t, []string{"a", "b"}, k.Strings("zone_dir"))
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(*koanf.Koanf, any) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := LoadResolver()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults, got nil")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(*koanf.Koanf, string) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := LoadStub()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(*validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := LoadSpoof()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatalf("expected registration error, got %v", err)
	}
}

func TestLoad_UnmarshalTypeMismatch(t *testing.T) {
	t.Setenv("DNS_MAX_PENDING", "lots")
	_, err := LoadResolver()
	assert.Error(t, err)
}

func TestValidIPPort(t *testing.T) {
	v := validator.New()
	require.NoError(t, registerValidation(v))

	for _, addr := range []string{"127.0.0.1:21000", "[::1]:53", "10.0.0.1:65535"} {
		assert.NoError(t, v.Var(addr, "ip_port"), addr)
	}
	for _, addr := range []string{"", "127.0.0.1", "host:53", "127.0.0.1:0", "127.0.0.1:70000", ":53"} {
		assert.Error(t, v.Var(addr, "ip_port"), addr)
	}
}
