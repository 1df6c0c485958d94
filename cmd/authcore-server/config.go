package main

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type serverConfig struct {
	HTTP        httpConfig     `mapstructure:"http"`
	Log         logConfig      `mapstructure:"log"`
	DatabaseURL string         `mapstructure:"database_url"`
	Redis       redisConfig    `mapstructure:"redis"`
	JWT         jwtConfig      `mapstructure:"jwt"`
	Password    passwordConfig `mapstructure:"password"`
	Refresh     refreshConfig  `mapstructure:"refresh"`
	Security    securityConfig `mapstructure:"security"`
	Audit       toggleConfig   `mapstructure:"audit"`
	Metrics     toggleConfig   `mapstructure:"metrics"`
	Admin       adminConfig    `mapstructure:"admin"`
}

type httpConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honored. Empty trusts no one.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type redisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type jwtConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Leeway     time.Duration `mapstructure:"leeway"`
}

type passwordConfig struct {
	Algorithm      string `mapstructure:"algorithm"`
	MinLength      int    `mapstructure:"min_length"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
}

type refreshConfig struct {
	Rotate bool `mapstructure:"rotate"`
}

type securityConfig struct {
	LoginThrottle    bool          `mapstructure:"login_throttle"`
	IPThrottle       bool          `mapstructure:"ip_throttle"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginCooldown    time.Duration `mapstructure:"login_cooldown"`
}

type toggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type adminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

var errMissingSecret = errors.New("jwt.secret is required (AUTHCORE_JWT_SECRET)")

// loadConfig reads an optional .env file, an optional YAML file, then
// AUTHCORE_* environment variables, in increasing precedence.
func loadConfig(configFile, envFile string) (serverConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return serverConfig{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return serverConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return serverConfig{}, errMissingSecret
	}
	if _, err := cfg.HTTP.trustedProxies(); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

// trustedProxies parses TrustedProxies. A bare address is a single-host prefix.
func (c httpConfig) trustedProxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("http.trusted_proxies: invalid entry %q", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	def := authcore.DefaultConfig()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database_url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", def.JWT.AccessTTL)
	v.SetDefault("jwt.refresh_ttl", def.JWT.RefreshTTL)
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", def.JWT.Leeway)

	v.SetDefault("password.algorithm", def.Password.Algorithm)
	v.SetDefault("password.min_length", def.Password.MinLength)
	v.SetDefault("password.upgrade_on_login", def.Password.UpgradeOnLogin)

	v.SetDefault("refresh.rotate", def.Refresh.Rotate)

	v.SetDefault("security.login_throttle", def.Security.EnableLoginThrottle)
	v.SetDefault("security.ip_throttle", def.Security.EnableIPThrottle)
	v.SetDefault("security.max_login_attempts", def.Security.MaxLoginAttempts)
	v.SetDefault("security.login_cooldown", def.Security.LoginCooldownDuration)

	v.SetDefault("audit.enabled", def.Audit.Enabled)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

// engineConfig maps server settings onto the library config.
func (c serverConfig) engineConfig() authcore.Config {
	cfg := authcore.DefaultConfig()

	cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.Leeway = c.JWT.Leeway

	cfg.Password.Algorithm = c.Password.Algorithm
	cfg.Password.MinLength = c.Password.MinLength
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin

	cfg.Refresh.Rotate = c.Refresh.Rotate

	cfg.Security.EnableLoginThrottle = c.Security.LoginThrottle
	cfg.Security.EnableIPThrottle = c.Security.IPThrottle
	cfg.Security.MaxLoginAttempts = c.Security.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Security.LoginCooldown

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled

	return cfg
}
