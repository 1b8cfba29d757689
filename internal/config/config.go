// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the palctl configuration schema.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Trace     TraceConfig     `yaml:"trace"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type SessionConfig struct {
	PalVersion     int    `yaml:"pal_version"`
	NdvType        int    `yaml:"ndv_type"`
	ServerCodePage string `yaml:"server_code_page"`
	SessionID      string `yaml:"session_id"`
	UserID         string `yaml:"user_id"`
}

// DiscoveryConfig points at an etcd cluster holding the server address.
// Discovery is skipped when Endpoints is empty.
type DiscoveryConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Key         string        `yaml:"key"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type TraceConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Sink          string        `yaml:"sink"`
	File          string        `yaml:"file"`
	MaxEntries    int           `yaml:"max_entries"`
	MaxBytes      int           `yaml:"max_bytes"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	S3            TraceS3Config `yaml:"s3"`
	Kafka         TraceKafka    `yaml:"kafka"`
}

type TraceS3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	Prefix         string `yaml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	KMSKeyARN      string `yaml:"kms_key_arn"`
}

type TraceKafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Trace sink names.
const (
	SinkFile  = "file"
	SinkS3    = "s3"
	SinkKafka = "kafka"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        2700,
			ReadTimeout: 60 * time.Second,
			DialTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			PalVersion: 47,
		},
		Discovery: DiscoveryConfig{
			Key:         "/natpal/servers/default",
			DialTimeout: 5 * time.Second,
		},
		Trace: TraceConfig{
			Sink:          SinkFile,
			File:          "pal.trace",
			MaxEntries:    256,
			MaxBytes:      1 << 20,
			FlushInterval: 5 * time.Second,
			S3: TraceS3Config{
				Region: "us-east-1",
				Prefix: "pal-trace",
			},
			Kafka: TraceKafka{
				Topic: "pal-trace",
			},
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// NATPAL_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOrDefault("NATPAL_HOST", c.Server.Host)
	c.Server.Port = parseEnvInt("NATPAL_PORT", c.Server.Port)
	c.Server.ReadTimeout = parseEnvDuration("NATPAL_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Session.PalVersion = parseEnvInt("NATPAL_PAL_VERSION", c.Session.PalVersion)
	c.Session.NdvType = parseEnvInt("NATPAL_NDV_TYPE", c.Session.NdvType)
	c.Session.ServerCodePage = envOrDefault("NATPAL_SERVER_CODE_PAGE", c.Session.ServerCodePage)
	c.Session.SessionID = envOrDefault("NATPAL_SESSION_ID", c.Session.SessionID)
	c.Session.UserID = envOrDefault("NATPAL_USER_ID", c.Session.UserID)
	c.Discovery.Endpoints = parseEnvList("NATPAL_ETCD_ENDPOINTS", c.Discovery.Endpoints)
	c.Discovery.Key = envOrDefault("NATPAL_DISCOVERY_KEY", c.Discovery.Key)
	c.Trace.Enabled = parseEnvBool("NATPAL_TRACE", c.Trace.Enabled)
	c.Trace.Sink = envOrDefault("NATPAL_TRACE_SINK", c.Trace.Sink)
	c.Trace.File = envOrDefault("NATPAL_TRACE_FILE", c.Trace.File)
	c.Trace.S3.Bucket = envOrDefault("NATPAL_TRACE_S3_BUCKET", c.Trace.S3.Bucket)
	c.Trace.S3.Region = envOrDefault("NATPAL_TRACE_S3_REGION", c.Trace.S3.Region)
	c.Trace.S3.Endpoint = envOrDefault("NATPAL_TRACE_S3_ENDPOINT", c.Trace.S3.Endpoint)
	c.Trace.Kafka.Brokers = parseEnvList("NATPAL_TRACE_KAFKA_BROKERS", c.Trace.Kafka.Brokers)
	c.Trace.Kafka.Topic = envOrDefault("NATPAL_TRACE_KAFKA_TOPIC", c.Trace.Kafka.Topic)
	c.Metrics.Addr = envOrDefault("NATPAL_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if len(c.Discovery.Endpoints) == 0 {
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required without discovery")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port %d out of range", c.Server.Port)
		}
	} else if c.Discovery.Key == "" {
		return fmt.Errorf("discovery.key is required with discovery.endpoints")
	}
	if !c.Trace.Enabled {
		return nil
	}
	switch c.Trace.Sink {
	case SinkFile:
		if c.Trace.File == "" {
			return fmt.Errorf("trace.file is required for the file sink")
		}
	case SinkS3:
		if c.Trace.S3.Bucket == "" {
			return fmt.Errorf("trace.s3.bucket is required for the s3 sink")
		}
	case SinkKafka:
		if len(c.Trace.Kafka.Brokers) == 0 || c.Trace.Kafka.Topic == "" {
			return fmt.Errorf("trace.kafka.brokers and trace.kafka.topic are required for the kafka sink")
		}
	default:
		return fmt.Errorf("unknown trace.sink %q", c.Trace.Sink)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return fallback
}

func parseEnvInt(name string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvBool(name string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvDuration(name string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvList(name string, fallback []string) []string {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
