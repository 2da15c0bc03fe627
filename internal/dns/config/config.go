// Package config loads program settings from struct defaults overlaid with
// prefixed environment variables, then validates them.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Environment variable prefixes, one per program family.
const (
	ServerPrefix = "DNS_"
	StubPrefix   = "DNS_STUB_"
	SpoofPrefix  = "DNS_SPOOF_"
)

// ServerConfig configures a resolver tier: the local resolver when Upstream
// is set, an authoritative responder when it is empty.
type ServerConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Listen is the UDP address to bind, in ip:port form.
	Listen string `koanf:"listen" validate:"required,ip_port"`

	// Transport names the datagram transport serving Listen.
	Transport string `koanf:"transport" validate:"required"`

	// Upstream is where cache misses are forwarded. Empty makes the tier
	// authoritative-only.
	Upstream string `koanf:"upstream" validate:"omitempty,ip_port"`

	ZoneDir    string `koanf:"zone_dir" validate:"required"`
	WatchZones bool   `koanf:"watch_zones"`

	// StaticTTL is cached when an upstream answer carries no TTL.
	StaticTTL uint32 `koanf:"static_ttl" validate:"gte=1"`

	// TxID selects how upstream transaction ids are generated.
	TxID string `koanf:"txid" validate:"required,oneof=sequential random"`

	// PendingTimeout drops forwarded queries that stay unanswered this
	// long. Zero keeps them until answered.
	PendingTimeout time.Duration `koanf:"pending_timeout" validate:"gte=0"`
	MaxPending     int           `koanf:"max_pending" validate:"gte=1"`

	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`

	// ShowTable prints the record store after each answer.
	ShowTable bool `koanf:"show_table"`

	// ConsumedCapacity sizes each generation of the consumed-id filter.
	ConsumedCapacity uint64 `koanf:"consumed_capacity" validate:"gte=1"`

	// JournalPath enables the answer journal when set.
	JournalPath string `koanf:"journal_path"`

	// SentryDSN enables crash reporting when set.
	SentryDSN string `koanf:"sentry_dsn"`
}

// StubConfig configures the interactive client.
type StubConfig struct {
	Env          string        `koanf:"env" validate:"required,oneof=dev prod"`
	LogLevel     string        `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	Resolver     string        `koanf:"resolver" validate:"required,ip_port"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	TxID         string        `koanf:"txid" validate:"required,oneof=sequential random"`
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
	ShowTable    bool          `koanf:"show_table"`
	SentryDSN    string        `koanf:"sentry_dsn"`
}

// SpoofConfig configures the forged-response demonstrator.
type SpoofConfig struct {
	Env      string `koanf:"env" validate:"required,oneof=dev prod"`
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Target is the resolver the forged answers are sent to.
	Target string `koanf:"target" validate:"required,ip_port"`
	Domain string `koanf:"domain" validate:"required,fqdn"`
	Type   string `koanf:"type" validate:"required,oneof=A AAAA CNAME NS a aaaa cname ns"`
	Result string `koanf:"result" validate:"required"`
	TTL    uint32 `koanf:"ttl"`

	// WindowStart and WindowSize bound the guessed transaction ids.
	WindowStart uint32 `koanf:"window_start"`
	WindowSize  uint32 `koanf:"window_size" validate:"gte=1"`

	// Rate is datagrams per second; Burst lets that many go back to back.
	Rate  float64 `koanf:"rate" validate:"gt=0"`
	Burst int     `koanf:"burst" validate:"gte=1"`

	// Rounds repeats the window, sleeping Pause between rounds. Zero
	// rounds repeats until interrupted.
	Rounds int           `koanf:"rounds" validate:"gte=0"`
	Pause  time.Duration `koanf:"pause" validate:"gte=0"`
}

// ResolverDefaults are the local resolver settings.
var ResolverDefaults = ServerConfig{
	Env:              "prod",
	LogLevel:         "info",
	Listen:           "127.0.0.1:21000",
	Transport:        "udp",
	Upstream:         "127.0.0.1:22000",
	ZoneDir:          "zones/local",
	StaticTTL:        60,
	TxID:             "sequential",
	MaxPending:       4096,
	TickInterval:     time.Second,
	ReadTimeout:      time.Second,
	ShowTable:        true,
	ConsumedCapacity: 65536,
}

// AuthorityDefaults are the authoritative responder settings.
var AuthorityDefaults = ServerConfig{
	Env:              "prod",
	LogLevel:         "info",
	Listen:           "127.0.0.1:22000",
	Transport:        "udp",
	ZoneDir:          "zones/authority",
	StaticTTL:        60,
	TxID:             "sequential",
	MaxPending:       4096,
	TickInterval:     time.Second,
	ReadTimeout:      time.Second,
	ConsumedCapacity: 65536,
}

// StubDefaults are the interactive client settings.
var StubDefaults = StubConfig{
	Env:          "prod",
	LogLevel:     "warn",
	Resolver:     "127.0.0.1:21000",
	Timeout:      3 * time.Second,
	TxID:         "sequential",
	TickInterval: time.Second,
	ShowTable:    true,
}

// SpoofDefaults reproduce the classic demonstration: twenty guessed ids
// claiming shop.amazone.com lives at 1.1.1.1 for an hour, sent back to back,
// then a 10ms pause, repeated until interrupted.
var SpoofDefaults = SpoofConfig{
	Env:        "prod",
	LogLevel:   "info",
	Target:     "127.0.0.1:21000",
	Domain:     "shop.amazone.com",
	Type:       "A",
	Result:     "1.1.1.1",
	TTL:        3600,
	WindowSize: 20,
	Rate:       2000,
	Burst:      20,
	Rounds:     0,
	Pause:      10 * time.Millisecond,
}

// validIPPort validates whether the provided field value is an IP:port pair
// with a port between 1 and 65535.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables carrying prefix, lowercased and
// stripped of the prefix. Values containing spaces or commas become lists.
// It is a variable so tests can replace it.
var envLoader = func(k *koanf.Koanf, prefix string) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, prefix))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads defaults from a tagged struct.
var defaultLoader = func(k *koanf.Koanf, defaults any) error {
	return k.Load(structs.Provider(defaults, "koanf"), nil)
}

// registerValidation registers the "ip_port" tag with the validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load builds a T from defaults overlaid with environment variables carrying
// prefix, then validates it.
func Load[T any](prefix string, defaults T) (*T, error) {
	k := koanf.New(".")

	if err := defaultLoader(k, defaults); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k, prefix); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg T
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadResolver loads the local resolver configuration.
func LoadResolver() (*ServerConfig, error) { return Load(ServerPrefix, ResolverDefaults) }

// LoadAuthority loads the authoritative responder configuration.
func LoadAuthority() (*ServerConfig, error) { return Load(ServerPrefix, AuthorityDefaults) }

// LoadStub loads the interactive client configuration.
func LoadStub() (*StubConfig, error) { return Load(StubPrefix, StubDefaults) }

// LoadSpoof loads the spoofer configuration.
func LoadSpoof() (*SpoofConfig, error) { return Load(SpoofPrefix, SpoofDefaults) }
