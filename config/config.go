// Package config loads the apimda YAML configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/openapi"
	"github.com/bjaus/apimda/runtime/nethttp"
)

// Config is the root configuration.
type Config struct {
	// Packages are the package patterns scanned for controllers.
	Packages []string      `yaml:"packages"`
	OpenAPI  OpenAPIConfig `yaml:"openapi"`
	Server   ServerConfig  `yaml:"server"`
}

// OpenAPIConfig holds the document parts that do not come from code.
type OpenAPIConfig struct {
	Info     InfoConfig            `yaml:"info"`
	Servers  []ServerURL           `yaml:"servers"`
	Security []map[string][]string `yaml:"security"`
	// Paths sets operation security by route path and lower case method.
	Paths           map[string]map[string]PathConfig `yaml:"paths"`
	SecuritySchemes map[string]map[string]any        `yaml:"security_schemes"`
	// Format is json or yaml.
	Format string `yaml:"format"`
}

// InfoConfig is the document info object.
type InfoConfig struct {
	Title          string         `yaml:"title"`
	Description    string         `yaml:"description"`
	TermsOfService string         `yaml:"terms_of_service"`
	Version        string         `yaml:"version"`
	Contact        *ContactConfig `yaml:"contact"`
	License        *LicenseConfig `yaml:"license"`
}

// ContactConfig is the API contact.
type ContactConfig struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Email string `yaml:"email"`
}

// LicenseConfig is the API license.
type LicenseConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ServerURL is a server the API is reachable at.
type ServerURL struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// PathConfig holds per-operation settings.
type PathConfig struct {
	Security []map[string][]string `yaml:"security"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// BodyLimit is the largest accepted request body in bytes.
	BodyLimit int64           `yaml:"body_limit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits requests per client IP. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Defaults.
const (
	DefaultListen    = ":8080"
	DefaultBodyLimit = 1 << 20
	DefaultFormat    = "json"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses configuration from a YAML file. ${VAR} and $VAR
// references to set environment variables are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var (
	bracedVar = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	bareVar   = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// expandEnvVars replaces ${VAR} and $VAR with the values of set
// environment variables. Unset references are kept.
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[1:]); ok {
			return val
		}
		return match
	})
}

func applyDefaults(cfg *Config) {
	if len(cfg.Packages) == 0 {
		cfg.Packages = []string{"./..."}
	}

	info := openapi.DefaultInfo()
	if cfg.OpenAPI.Info.Title == "" {
		cfg.OpenAPI.Info.Title = info.Title
	}
	if cfg.OpenAPI.Info.Version == "" {
		cfg.OpenAPI.Info.Version = info.Version
	}
	if cfg.OpenAPI.Format == "" {
		cfg.OpenAPI.Format = DefaultFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.BodyLimit == 0 {
		cfg.Server.BodyLimit = DefaultBodyLimit
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = max(1, int(cfg.Server.RateLimit.RequestsPerSecond))
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Packages, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.OpenAPI),
		validation.Field(&c.Server),
	)
}

// Validate checks the OpenAPI section.
func (c OpenAPIConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Info),
		validation.Field(&c.Servers),
		validation.Field(&c.Paths, validation.By(validPaths)),
		validation.Field(&c.Format, validation.In("json", "yaml")),
	)
}

func validPaths(value any) error {
	paths, _ := value.(map[string]map[string]PathConfig)
	for path, methods := range paths {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("path %q must start with '/'", path)
		}
		for method := range methods {
			if !isMethod(method) {
				return fmt.Errorf("path %s: unsupported method %q", path, method)
			}
		}
	}
	return nil
}

func isMethod(method string) bool {
	for _, m := range metadata.Methods {
		if string(m) == method {
			return true
		}
	}
	return false
}

// Validate checks the info object.
func (i InfoConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Title, validation.Required),
		validation.Field(&i.Version, validation.Required),
		validation.Field(&i.TermsOfService, is.URL),
		validation.Field(&i.Contact),
		validation.Field(&i.License),
	)
}

// Validate checks the contact.
func (c ContactConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.Email, is.EmailFormat),
	)
}

// Validate checks the license.
func (l LicenseConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Name, validation.Required),
		validation.Field(&l.URL, is.URL),
	)
}

// Validate checks the server URL.
func (s ServerURL) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.URL, validation.Required, is.URL),
	)
}

// Validate checks the server settings.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Listen, validation.Required),
		validation.Field(&s.BodyLimit, validation.Min(int64(1))),
		validation.Field(&s.RateLimit),
	)
}

// HandlerOptions converts the server settings to handler options.
func (s ServerConfig) HandlerOptions() []nethttp.Option {
	opts := []nethttp.Option{nethttp.WithBodyLimit(s.BodyLimit)}
	if s.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, nethttp.WithRateLimit(nethttp.RateLimitConfig{
			Rate:  s.RateLimit.RequestsPerSecond,
			Burst: s.RateLimit.Burst,
		}))
	}
	return opts
}

// Validate checks the rate limit.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&r.Burst, validation.Min(0)),
	)
}

// Options converts the OpenAPI section to generator options.
func (c OpenAPIConfig) Options() (openapi.Options, error) {
	opts := openapi.Options{
		Info: &openapi3.Info{
			Title:          c.Info.Title,
			Description:    c.Info.Description,
			TermsOfService: c.Info.TermsOfService,
			Version:        c.Info.Version,
		},
		Security: requirements(c.Security),
	}
	if ct := c.Info.Contact; ct != nil {
		opts.Info.Contact = &openapi3.Contact{Name: ct.Name, URL: ct.URL, Email: ct.Email}
	}
	if l := c.Info.License; l != nil {
		opts.Info.License = &openapi3.License{Name: l.Name, URL: l.URL}
	}
	for _, s := range c.Servers {
		opts.Servers = append(opts.Servers, &openapi3.Server{URL: s.URL, Description: s.Description})
	}

	if len(c.Paths) > 0 {
		opts.PathSecurity = map[string]map[string]openapi3.SecurityRequirements{}
		for path, methods := range c.Paths {
			opts.PathSecurity[path] = map[string]openapi3.SecurityRequirements{}
			for method, pc := range methods {
				opts.PathSecurity[path][method] = requirements(pc.Security)
			}
		}
	}

	if len(c.SecuritySchemes) > 0 {
		opts.SecuritySchemes = openapi3.SecuritySchemes{}
		for name, raw := range c.SecuritySchemes {
			scheme, err := securityScheme(raw)
			if err != nil {
				return openapi.Options{}, fmt.Errorf("security scheme %s: %w", name, err)
			}
			opts.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{Value: scheme}
		}
	}
	return opts, nil
}

func requirements(list []map[string][]string) openapi3.SecurityRequirements {
	if list == nil {
		return nil
	}
	out := make(openapi3.SecurityRequirements, 0, len(list))
	for _, req := range list {
		r := openapi3.SecurityRequirement{}
		for name, scopes := range req {
			if scopes == nil {
				scopes = []string{}
			}
			r[name] = scopes
		}
		out = append(out, r)
	}
	return out
}

// securityScheme decodes a scheme written with OpenAPI field names.
func securityScheme(raw map[string]any) (*openapi3.SecurityScheme, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var scheme openapi3.SecurityScheme
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}
