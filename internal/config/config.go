package config

import (
	"context"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "NG_"

type (
	Config struct {
		TelegramAPIToken string  `env:"TOKEN,required"`
		DefaultLanguage  string  `env:"LANG,default=en"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.ngguard"`
		DBFile           string  `env:"DB_FILE,default=guard.db"`
		OwnerID          int64   `env:"OWNER_ID"`
		MasterIDs        []int64 `env:"MASTER_IDS"`
		RedisURL         string  `env:"REDIS_URL"`
		Dispatch         Dispatch
		Telegram         Telegram
		Metrics          Metrics
	}

	Dispatch struct {
		Workers   int `env:"WORKERS,default=8"`
		QueueSize int `env:"QUEUE_SIZE,default=256"`
	}

	Telegram struct {
		SendRate  float64 `env:"SEND_RATE,default=25"`
		SendBurst int     `env:"SEND_BURST,default=5"`
	}

	Metrics struct {
		Addr             string  `env:"METRICS_ADDR"`
		TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO,default=0"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg, err := loadFrom(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

func loadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, errors.Wrap(err, "expand dot path")
	}
	cfg.DotPath = dotPath
	if cfg.Dispatch.Workers < 1 {
		cfg.Dispatch.Workers = 1
	}
	if cfg.Dispatch.QueueSize < 1 {
		cfg.Dispatch.QueueSize = 1
	}
	return cfg, nil
}

// IsMaster reports whether userID has bot-wide rights.
func (c Config) IsMaster(userID int64) bool {
	if userID == 0 {
		return false
	}
	if userID == c.OwnerID {
		return true
	}
	for _, id := range c.MasterIDs {
		if id == userID {
			return true
		}
	}
	return false
}
