package config

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	BlobFirebase = "firebase"
	BlobS3       = "s3"
	BlobMemory   = "memory"
)

// Firebase holds the service account. Fields tagged with a json name are marshaled
// as-is into the credentials JSON.
type Firebase struct {
	Type                    string `env:"FIREBASE_TYPE" envDefault:"service_account" json:"type"`
	ProjectId               string `env:"FIREBASE_PROJECT_ID" json:"project_id"`
	PrivateKeyId            string `env:"FIREBASE_PRIVATE_KEY_ID" json:"private_key_id"`
	PrivateKey              string `env:"FIREBASE_PRIVATE_KEY" json:"private_key"`
	ClientEmail             string `env:"FIREBASE_CLIENT_EMAIL" json:"client_email"`
	ClientId                string `env:"FIREBASE_CLIENT_ID" json:"client_id"`
	AuthUri                 string `env:"FIREBASE_AUTH_URI" envDefault:"https://accounts.google.com/o/oauth2/auth" json:"auth_uri"`
	TokenUri                string `env:"FIREBASE_TOKEN_URI" envDefault:"https://oauth2.googleapis.com/token" json:"token_uri"`
	AuthProviderX509CertUrl string `env:"FIREBASE_AUTH_PROVIDER_X509_CERT_URL" envDefault:"https://www.googleapis.com/oauth2/v1/certs" json:"auth_provider_x509_cert_url"`
	ClientX509CertUrl       string `env:"FIREBASE_CLIENT_X509_CERT_URL" json:"client_x509_cert_url"`
	StorageBucket           string `env:"FIREBASE_STORAGE_BUCKET" json:"-"`
	WriteTimeoutSecond      int    `env:"FIREBASE_WRITE_TIMEOUT_SECOND" envDefault:"30" json:"-"`
}

type Store struct {
	Backend string `env:"STORE_BACKEND" envDefault:"firestore"`
}

// Blob selects where product images live. The S3 fields apply to any S3 compatible
// service, Cloudflare R2 included.
type Blob struct {
	Backend           string `env:"BLOB_BACKEND" envDefault:"firebase"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION" envDefault:"auto"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyId     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `env:"S3_PUBLIC_URL"`
}

type Server struct {
	Port                string `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownGraceSecond int    `env:"SERVER_SHUTDOWN_GRACE_SECOND" envDefault:"5"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY"`
}

type Metrics struct {
	Prefix string `env:"METRICS_PREFIX"`
}

type Config struct {
	Firebase
	Store
	Blob
	Server
	Log
	Metrics
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	var config *Config = new(Config)
	if err := env.Parse(config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := config.normalize(); err != nil {
		return Config{}, fmt.Errorf("normalize config: %w", err)
	}
	return *config, nil
}

func LoadConfigOrPanic() Config {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}

// UsesFirebase reports whether any selected backend needs the service account.
func (c Config) UsesFirebase() bool {
	return c.Store.Backend == StoreFirestore || c.Blob.Backend == BlobFirebase
}

func (f Firebase) WriteTimeout() time.Duration {
	return time.Duration(f.WriteTimeoutSecond) * time.Second
}

func (s Server) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSecond) * time.Second
}

func (c *Config) normalize() error {

	switch c.Store.Backend {
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Blob.Backend {
	case BlobFirebase, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is %s", BlobS3)
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	if c.WriteTimeoutSecond <= 0 {
		c.WriteTimeoutSecond = 30
	}
	if c.ShutdownGraceSecond <= 0 {
		c.ShutdownGraceSecond = 5
	}

	if !c.UsesFirebase() {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"FIREBASE_PROJECT_ID":     c.ProjectId,
		"FIREBASE_PRIVATE_KEY_ID": c.PrivateKeyId,
		"FIREBASE_PRIVATE_KEY":    c.PrivateKey,
		"FIREBASE_CLIENT_EMAIL":   c.ClientEmail,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("firebase backend selected, missing %s", strings.Join(missing, ", "))
	}

	key, err := decodePrivateKey(c.PrivateKey)
	if err != nil {
		return err
	}
	c.PrivateKey = key

	if c.Blob.Backend == BlobFirebase && c.StorageBucket == "" {
		c.StorageBucket = c.ProjectId + ".appspot.com"
	}
	return nil
}

// decodePrivateKey accepts the PEM block either base64 encoded or inline with escaped newlines.
func decodePrivateKey(raw string) (string, error) {
	key := raw
	if !strings.HasPrefix(strings.TrimSpace(raw), "-----BEGIN") {
		decodedBytes, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", fmt.Errorf("decode FIREBASE_PRIVATE_KEY: %w", err)
		}
		key = string(decodedBytes)
	}
	return strings.ReplaceAll(key, "\\n", "\n"), nil
}
