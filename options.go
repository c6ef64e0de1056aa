package enclave

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"enclave/frontend"
	"enclave/sandbox"
	"enclave/trace"
)

const (
	defaultTimeout        = 5 * time.Second
	defaultMaxDiagnostics = 64
)

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithTracer installs a phase tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithArtifactCache memoizes successful preprocessing in the given cache.
func WithArtifactCache(c *ArtifactCache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithCompilerOptions passes options through to the front end.
func WithCompilerOptions(opts frontend.Options) Option {
	return func(p *Pipeline) {
		p.compilerOpts = opts
	}
}

// WithMessageRenderer registers a custom message renderer for one
// diagnostic code. Custom renderers are applied before the built-in
// template table, which in turn falls through to the raw compiler
// message.
func WithMessageRenderer(code int, r frontend.MessageRenderer) Option {
	return func(p *Pipeline) {
		p.renderers[code] = r
	}
}

// WithMaxDiagnostics caps the number of diagnostics collected per
// invocation.
func WithMaxDiagnostics(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxDiags = n
		}
	}
}

// Config is the TOML-loadable subset of pipeline settings.
type Config struct {
	TimeoutMs      int            `toml:"timeout_ms"`
	MaxDiagnostics int            `toml:"max_diagnostics"`
	Compiler       CompilerConfig `toml:"compiler"`
	// Messages maps a decimal diagnostic code to fixed replacement text,
	// overriding the built-in template for that code.
	Messages map[string]string `toml:"messages"`
}

type CompilerConfig struct {
	Target string `toml:"target"`
	Strict bool   `toml:"strict"`
}

// LoadConfig reads a pipeline config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return &cfg, nil
}

// WithConfig applies a loaded config. Explicit options given after
// WithConfig take precedence.
func WithConfig(cfg *Config) Option {
	return func(p *Pipeline) {
		if cfg == nil {
			return
		}
		if cfg.TimeoutMs > 0 {
			p.defaultTimeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		if cfg.MaxDiagnostics > 0 {
			p.maxDiags = cfg.MaxDiagnostics
		}
		p.compilerOpts.Target = cfg.Compiler.Target
		p.compilerOpts.Strict = cfg.Compiler.Strict
		for key, msg := range cfg.Messages {
			code, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			text := msg
			p.renderers[code] = func(frontend.Diagnostic) string { return text }
		}
	}
}

// CallOption configures one invocation.
type CallOption func(*callConfig)

type callConfig struct {
	returnType string
	argTypes   []string
	timeout    time.Duration
	aux        []frontend.Unit
	realm      *sandbox.Realm
}

func (p *Pipeline) newCallConfig(opts []CallOption) *callConfig {
	cc := &callConfig{
		returnType: "any",
		argTypes:   []string{"any"},
		timeout:    p.defaultTimeout,
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// WithReturnType declares the expected return type of the default export.
func WithReturnType(t string) CallOption {
	return func(cc *callConfig) {
		if t != "" {
			cc.returnType = t
		}
	}
}

// WithArgTypes declares the expected parameter types, in order.
func WithArgTypes(types ...string) CallOption {
	return func(cc *callConfig) {
		if len(types) > 0 {
			cc.argTypes = types
		}
	}
}

// WithTimeout bounds one evaluation's wall-clock time.
func WithTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) {
		if d > 0 {
			cc.timeout = d
		}
	}
}

// WithAuxUnits supplies auxiliary source units the submission may import.
func WithAuxUnits(units ...frontend.Unit) CallOption {
	return func(cc *callConfig) {
		cc.aux = append(cc.aux, units...)
	}
}

// WithRealm executes inside an existing realm instead of a fresh one, so
// state carries over between calls.
func WithRealm(r *sandbox.Realm) CallOption {
	return func(cc *callConfig) {
		cc.realm = r
	}
}
