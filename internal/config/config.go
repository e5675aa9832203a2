package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store types.
const (
	StoreNone   = "none"
	StoreBadger = "badger"
	StorePebble = "pebble"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

type Config struct {
	// Broker is the server address, in the form "host:port" or as URL
	// with scheme tcp, tls, ssl, ws or wss. Normalized to URL form by Validate.
	Broker string `mapstructure:"broker"`

	// TLS configures the tls and wss transports.
	TLS struct {
		CAFile   string `mapstructure:"ca_file"`
		Cert     string `mapstructure:"cert"`
		Key      string `mapstructure:"key"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"tls"`

	// ClientID is generated if empty.
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	QoS          uint8  `mapstructure:"qos"`
	KeepAlive    uint16 `mapstructure:"keep_alive"` // seconds
	CleanSession bool   `mapstructure:"clean_session"`

	Will struct {
		Enabled bool   `mapstructure:"enabled"`
		Topic   string `mapstructure:"topic"`
		Message string `mapstructure:"message"`
		QoS     uint8  `mapstructure:"qos"`
		Retain  bool   `mapstructure:"retain"`
	} `mapstructure:"will"`

	// PingInterval is the period of PINGREQ while subscribed.
	PingInterval time.Duration `mapstructure:"ping_interval"`

	// ShutdownGrace bounds the wait for the broker after UNSUBSCRIBE on shutdown.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	// Log configures optional log output file as well as the log level setting.
	Log struct {
		File  string `mapstructure:"file"`
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// Store optionally archives received messages.
	Store struct {
		Type      string `mapstructure:"type"`
		Dir       string `mapstructure:"dir"`
		RedisAddr string `mapstructure:"redis_addr"`
		RedisKey  string `mapstructure:"redis_key"`
	} `mapstructure:"store"`
}

// SetDefaults registers every key with its default, so environment overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("broker", "localhost:1883")
	v.SetDefault("tls.ca_file", "")
	v.SetDefault("tls.cert", "")
	v.SetDefault("tls.key", "")
	v.SetDefault("tls.insecure", false)
	v.SetDefault("client_id", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("qos", 0)
	v.SetDefault("keep_alive", 60)
	v.SetDefault("clean_session", false)
	v.SetDefault("will.enabled", false)
	v.SetDefault("will.topic", "")
	v.SetDefault("will.message", "")
	v.SetDefault("will.qos", 0)
	v.SetDefault("will.retain", false)
	v.SetDefault("ping_interval", 10*time.Second)
	v.SetDefault("shutdown_grace", 5*time.Second)
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.type", StoreNone)
	v.SetDefault("store.dir", "/var/tmp/mqttc")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_key", "mqttc")
}

// Load reads the config file set on v if any, applies MQTTC_ environment
// overrides and returns the validated result.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("MQTTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New("error reading config file: " + err.Error())
		}
		log.Infoln("Using config file:", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.New("error decoding config: " + err.Error())
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		c.Broker = "localhost"
	}
	if !strings.Contains(c.Broker, "://") {
		c.Broker = "tcp://" + c.Broker
	}

	u, err := url.Parse(c.Broker)
	if err != nil {
		return errors.New("invalid broker address: " + err.Error())
	}

	var port string
	switch u.Scheme {
	case "tcp", "mqtt":
		port = "1883"
	case "tls", "ssl", "mqtts":
		port = "8883"
	case "ws":
		port = "80"
	case "wss":
		port = "443"
	default:
		return errors.New("unsupported broker scheme: " + u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("invalid broker address: no host")
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port) // if just ip/host specified
	}
	c.Broker = u.String()

	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return errors.New("invalid TLS certificate and/or private key file path setup")
	}

	if c.Password != "" && c.Username == "" {
		return errors.New("password requires username")
	}

	if c.QoS > 2 || c.Will.QoS > 2 {
		return errors.New("invalid QoS, must be 0, 1 or 2")
	}

	if c.Will.Enabled && (c.Will.Topic == "" || c.Will.Message == "") {
		return errors.New("will requires will topic and will message")
	}
	if !c.Will.Enabled && (c.Will.QoS != 0 || c.Will.Retain) {
		return errors.New("will QoS and will retain require will")
	}

	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}

	switch c.Store.Type {
	case "":
		c.Store.Type = StoreNone
	case StoreNone, StoreBadger, StorePebble, StoreBolt:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("redis store requires an address")
		}
	default:
		return errors.New("unknown store type: " + c.Store.Type)
	}

	return nil
}

// SetupLogging applies the log file and level settings to the standard logger.
func (c *Config) SetupLogging() error {
	if c.Log.File != "" {
		f, err := os.OpenFile(c.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		log.SetOutput(f)
	}
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "error":
			log.SetLevel(log.ErrorLevel)
		case "warn":
			log.SetLevel(log.WarnLevel)
		case "info":
			log.SetLevel(log.InfoLevel)
		case "debug":
			log.SetLevel(log.DebugLevel)
		default:
			return errors.New("unknown log level: " + c.Log.Level)
		}
	}

	return nil
}
