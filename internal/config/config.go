package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default file names, resolved relative to the working directory.
const (
	DefaultCredentialsPath = "config.properties"
	DefaultDownloaderPath  = "downloader-config.properties"
	DefaultUploaderPath    = "uploader-config.properties"
)

// DefaultMaxConcurrentSessions is used when the credentials file does not set one.
const DefaultMaxConcurrentSessions = 5

// Credentials identifies the HMAC user and the integration host.
type Credentials struct {
	User                  string
	AccessKey             string
	Secret                string
	Datakey               string
	Host                  string
	MaxConcurrentSessions int
	RequestTimeout        time.Duration
}

// LoadCredentials reads the credentials file.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		path = DefaultCredentialsPath
	}
	props, err := readProperties(path)
	if err != nil {
		return Credentials{}, err
	}

	cfg := Credentials{
		User:      props.get("user"),
		AccessKey: props.get("accessKey"),
		Secret:    props.get("secret"),
		Datakey:   props.get("datakey"),
		Host:      strings.TrimRight(props.get("host"), "/"),
	}
	if cfg.MaxConcurrentSessions, err = props.positiveInt("maxConcurrentSessions", DefaultMaxConcurrentSessions); err != nil {
		return Credentials{}, err
	}
	timeoutSeconds, err := props.positiveInt("requestTimeoutInSeconds", 60)
	if err != nil {
		return Credentials{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	if err := validateCredentials(cfg); err != nil {
		return Credentials{}, err
	}
	return cfg, nil
}

func validateCredentials(cfg Credentials) error {
	var missing []string
	if cfg.User == "" {
		missing = append(missing, "user")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "accessKey")
	}
	if cfg.Secret == "" {
		missing = append(missing, "secret")
	}
	if cfg.Datakey == "" {
		missing = append(missing, "datakey")
	}
	if cfg.Host == "" {
		missing = append(missing, "host")
	}
	if len(missing) > 0 {
		return errors.New("missing config values: " + strings.Join(missing, ", "))
	}
	if !strings.Contains(cfg.Host, "://") {
		return fmt.Errorf("host %q must include a scheme such as https://", cfg.Host)
	}
	return nil
}

// properties is a case-insensitive key/value view over a config file.
type properties map[string]string

func (p properties) get(key string) string {
	return p[strings.ToLower(key)]
}

func (p properties) has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

func (p properties) positiveInt(key string, fallback int) (int, error) {
	raw := p.get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("property %s has invalid value %q; must be an integer", key, raw)
	}
	if value <= 0 {
		return 0, fmt.Errorf("property %s must be greater than zero", key)
	}
	return value, nil
}

func (p properties) boolean(key string, fallback bool) (bool, error) {
	raw := p.get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("property %s has invalid value %q; must be true or false", key, raw)
	}
	return value, nil
}

func readProperties(path string) (properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("required property file %s is missing", path)
		}
		return nil, fmt.Errorf("open config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseProperties(data)
	}
}

func parseYAML(data []byte) (properties, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	props := properties{}
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			props[strings.ToLower(key)] = ""
		case map[string]any, []any:
			return nil, fmt.Errorf("property %s must be a scalar value", key)
		default:
			props[strings.ToLower(key)] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return props, nil
}
