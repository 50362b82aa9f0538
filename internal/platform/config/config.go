// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Reciprocal propagation modes.
const (
	ReciprocalQueue  = "queue"
	ReciprocalKafka  = "kafka"
	ReciprocalInline = "inline"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
	LogLevel       slog.Level

	// DatabaseURL selects the postgres stores. Empty runs everything in memory.
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	ReciprocalMode         string
	// ReciprocalWorkers and ReciprocalQueueSize size the in-process queue
	// used when ReciprocalMode is queue.
	ReciprocalWorkers      int
	ReciprocalQueueSize    int
	ReplicationConcurrency int
	ReplicationLockTTL     time.Duration
	BranchCacheTTL         time.Duration
	AuditBuffer            int

	JWTSigningKey string
	JWTIssuer     string
	// ActorHeadersTrusted accepts X-Actor-Role and X-Branch-* from the gateway.
	// Only for development behind a trusted proxy.
	ActorHeadersTrusted bool
}

// RedisConfig configures the branch cache and the replication lock.
// An empty URL disables both.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the reciprocal task topic.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Partitions    int32
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}

	var p parser
	cfg := Server{
		Addr:           p.str("CAREDESK_ADDR", ":8080"),
		RequestTimeout: p.duration("REQUEST_TIMEOUT", 15*time.Second),
		LogLevel:       p.level("LOG_LEVEL", slog.LevelInfo),
		DatabaseURL:    p.str("DATABASE_URL", ""),
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       p.list("KAFKA_BROKERS"),
			Topic:         p.str("RECIPROCAL_TOPIC", "beneficiary.reciprocal"),
			ConsumerGroup: p.str("RECIPROCAL_CONSUMER_GROUP", "caredesk-reciprocal"),
			Partitions:    int32(p.integer("RECIPROCAL_TOPIC_PARTITIONS", 3)),
		},
		ReciprocalMode:         strings.ToLower(p.str("RECIPROCAL_MODE", ReciprocalQueue)),
		ReciprocalWorkers:      p.integer("RECIPROCAL_WORKERS", 2),
		ReciprocalQueueSize:    p.integer("RECIPROCAL_QUEUE_SIZE", 256),
		ReplicationConcurrency: p.integer("REPLICATION_CONCURRENCY", 1),
		ReplicationLockTTL:     p.duration("REPLICATION_LOCK_TTL", 30*time.Second),
		BranchCacheTTL:         p.duration("BRANCH_CACHE_TTL", 30*time.Second),
		AuditBuffer:            p.integer("AUDIT_BUFFER", 0),
		JWTSigningKey:          p.str("JWT_SIGNING_KEY", ""),
		JWTIssuer:              p.str("JWT_ISSUER", ""),
		ActorHeadersTrusted:    p.boolean("ACTOR_HEADERS_TRUSTED", false),
	}
	if p.err != nil {
		return Server{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	switch c.ReciprocalMode {
	case ReciprocalQueue, ReciprocalInline:
	case ReciprocalKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("RECIPROCAL_MODE=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("RECIPROCAL_MODE must be queue, kafka or inline, got %q", c.ReciprocalMode)
	}
	if c.ReplicationConcurrency < 1 {
		return errors.New("REPLICATION_CONCURRENCY must be at least 1")
	}
	if c.AuditBuffer < 0 {
		return errors.New("AUDIT_BUFFER cannot be negative")
	}
	if c.JWTSigningKey == "" && !c.ActorHeadersTrusted {
		return errors.New("JWT_SIGNING_KEY is required unless ACTOR_HEADERS_TRUSTED=true")
	}
	return nil
}

// parser keeps the first malformed variable so FromEnv reports one error.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
		return def
	}
	return l
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}
