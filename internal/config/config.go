package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"

	TorrentTransmission = "transmission"
	TorrentEmbedded     = "embedded"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Store struct {
		Backend       string `mapstructure:"backend"`
		SQLitePath    string `mapstructure:"sqlite_path"`
		RedisAddr     string `mapstructure:"redis_addr"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
		RedisKey      string `mapstructure:"redis_key"`
	} `mapstructure:"store"`
	Torrent struct {
		Backend  string        `mapstructure:"backend"`
		RPCURL   string        `mapstructure:"rpc_url"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		Timeout  time.Duration `mapstructure:"timeout"`
		DataDir  string        `mapstructure:"data_dir"`
	} `mapstructure:"torrent"`
	Telegram struct {
		Token       string        `mapstructure:"token"`
		APIURL      string        `mapstructure:"api_url"`
		PollTimeout time.Duration `mapstructure:"poll_timeout"`
		RateLimit   float64       `mapstructure:"rate_limit"`
	} `mapstructure:"telegram"`
	Bot struct {
		AllowedUsers []string `mapstructure:"allowed_users"`
	} `mapstructure:"bot"`
	Reconcile struct {
		Interval    time.Duration `mapstructure:"interval"`
		PassTimeout time.Duration `mapstructure:"pass_timeout"`
	} `mapstructure:"reconcile"`
	HTTP struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"http"`
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Bot.AllowedUsers = splitUsers(cfg.Bot.AllowedUsers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.backend", StoreSQLite)
	v.SetDefault("store.sqlite_path", "data/waitlist.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_key", "torrent-notify:waitList")
	v.SetDefault("torrent.backend", TorrentTransmission)
	v.SetDefault("torrent.rpc_url", "http://localhost:9091/transmission/rpc")
	v.SetDefault("torrent.username", "")
	v.SetDefault("torrent.password", "")
	v.SetDefault("torrent.timeout", 10*time.Second)
	v.SetDefault("torrent.data_dir", "data/downloads")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.rate_limit", 25.0)
	v.SetDefault("bot.allowed_users", []string{})
	v.SetDefault("reconcile.interval", time.Second)
	v.SetDefault("reconcile.pass_timeout", 30*time.Second)
	v.SetDefault("http.jwt_secret", "")
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Torrent.Backend {
	case TorrentTransmission, TorrentEmbedded:
	default:
		return fmt.Errorf("unknown torrent backend %q", c.Torrent.Backend)
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	return nil
}

// splitUsers accepts both list values and a single comma separated env value.
func splitUsers(in []string) []string {
	var out []string
	for _, item := range in {
		for _, u := range strings.Split(item, ",") {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
