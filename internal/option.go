package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	stdout  io.Writer
	logOut  io.Writer
	format  string
	clean   bool
	strict  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithOutput sets where command results are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithLogOutput sets where structured logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithFormat selects "text" or "json" output for printing commands.
func WithFormat(f string) Option {
	return func(a *application) {
		a.format = f
	}
}

// WithClean empties the site directory before a build.
func WithClean(clean bool) Option {
	return func(a *application) {
		a.clean = clean
	}
}

// WithStrict makes a build fail when any page has unresolved links.
func WithStrict(strict bool) Option {
	return func(a *application) {
		a.strict = strict
	}
}
