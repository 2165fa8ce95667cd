package internal

import (
	"io"
	"os"
)

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	ModeConvert Mode = "convert"
	ModeServe   Mode = "serve"
	ModeMCP     Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	mode      Mode
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeConvert.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithLogOutput redirects log output. The default is stdout, or stderr in
// MCP mode where stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

func (a *application) defaults() {
	if a.mode == "" {
		a.mode = ModeConvert
	}
	if a.logOutput == nil {
		a.logOutput = os.Stdout
		if a.mode == ModeMCP {
			a.logOutput = os.Stderr
		}
	}
}
