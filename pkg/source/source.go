// Package source resolves connection configuration into the set of database
// targets the reflector will profile.
//
// Two configuration forms exist: a comma-separated list of connection URIs,
// and a discrete host/port/user/dialect parameter set describing exactly one
// connection. When the URI list is present the discrete form is ignored
// entirely; the two are never merged.
package source

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/edgeflare/autorest/pkg/dialect"
)

// Target is one logical database connection: its URI and the resolved
// dialect. Targets are immutable once resolved.
type Target struct {
	URI     string
	Dialect dialect.Dialect
}

// Discrete is the single-connection fallback parameter set.
type Discrete struct {
	Host     string
	Port     string
	User     string
	Password string
	Dialect  string
}

// ConfigurationError means no usable connection could be resolved. It is
// fatal at startup: the process must not begin serving.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Dialect URI schemes the original deployments used interchangeably.
var schemeAliases = map[string]string{
	"postgres":            "postgresql",
	"postgresql+psycopg2": "postgresql",
	"sqlite3":             "sqlite",
}

// Resolve parses configuration into an ordered, deduplicated target list.
// uris is the raw comma-separated multi-URI value; when non-empty it takes
// full precedence over the discrete form. Every target's dialect must be
// registered, otherwise resolution fails before any connection is attempted.
func Resolve(uris string, discrete Discrete) ([]Target, error) {
	connStrings := splitURIs(uris)
	if len(connStrings) == 0 {
		uri, err := discreteURI(discrete)
		if err != nil {
			return nil, err
		}
		if uri != "" {
			connStrings = []string{uri}
		}
	}

	if len(connStrings) == 0 {
		return nil, &ConfigurationError{Reason: "no database connections configured"}
	}

	targets := make([]Target, 0, len(connStrings))
	for _, cs := range connStrings {
		name, err := dialectName(cs)
		if err != nil {
			return nil, err
		}
		d, err := dialect.Lookup(name)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("connection %q", redact(cs)), Err: err}
		}
		targets = append(targets, Target{URI: cs, Dialect: d})
	}
	return targets, nil
}

// splitURIs splits the comma-separated list, trimming whitespace and
// dropping duplicates while preserving first-seen order.
func splitURIs(uris string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(uris, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func discreteURI(d Discrete) (string, error) {
	if d.Host == "" && d.User == "" && d.Dialect == "" {
		return "", nil
	}
	if d.Dialect == "" {
		return "", &ConfigurationError{Reason: "discrete connection parameters set but no dialect given"}
	}
	if d.Host == "" {
		return "", &ConfigurationError{Reason: "discrete connection parameters set but no host given"}
	}

	u := url.URL{Scheme: d.Dialect, Host: d.Host}
	if d.Port != "" {
		u.Host = d.Host + ":" + d.Port
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	return u.String(), nil
}

func dialectName(uri string) (string, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("connection %q has no dialect scheme", redact(uri))}
	}
	if canonical, ok := schemeAliases[scheme]; ok {
		return canonical, nil
	}
	return scheme, nil
}

// redact strips credentials from a URI before it lands in an error message.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	u.User = url.User(u.User.Username())
	return u.String()
}
