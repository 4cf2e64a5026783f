// Package guard decides whether a navigation may proceed given the session.
package guard

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"garage-client/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLoginDestination    = "/login"
	DefaultFallbackDestination = "/"
)

// RolePolicy selects what a declared role requirement does.
type RolePolicy int

const (
	// RoleAnnotate records the role but never blocks on it.
	RoleAnnotate RolePolicy = iota
	// RoleEnforce redirects to the fallback destination when the user's role
	// differs or the profile is not loaded yet.
	RoleEnforce
)

func ParseRolePolicy(raw string) (RolePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "annotate":
		return RoleAnnotate, nil
	case "enforce":
		return RoleEnforce, nil
	default:
		return RoleAnnotate, fmt.Errorf("unknown role policy %q", raw)
	}
}

// Table maps a destination to its requirement. Destinations missing from
// the table are public.
type Table map[string]model.RouteRequirement

type SessionReader interface {
	Snapshot() model.Session
}

// Decision is either proceed (empty Redirect) or a redirect.
type Decision struct {
	Redirect string
}

func (d Decision) Proceed() bool { return d.Redirect == "" }

type Options struct {
	Table               Table
	Session             SessionReader
	Policy              RolePolicy
	LoginDestination    string
	FallbackDestination string
	Logger              *slog.Logger
}

type Guard struct {
	table    Table
	session  SessionReader
	policy   RolePolicy
	login    string
	fallback string
	logger   *slog.Logger
}

func New(opts Options) *Guard {
	if opts.LoginDestination == "" {
		opts.LoginDestination = DefaultLoginDestination
	}
	if opts.FallbackDestination == "" {
		opts.FallbackDestination = DefaultFallbackDestination
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	table := make(Table, len(opts.Table))
	for dest, req := range opts.Table {
		table[dest] = req
	}
	return &Guard{
		table:    table,
		session:  opts.Session,
		policy:   opts.Policy,
		login:    opts.LoginDestination,
		fallback: opts.FallbackDestination,
		logger:   opts.Logger,
	}
}

// Check evaluates a navigation to destination. A blocked destination is not
// remembered; after login the caller starts over.
func (g *Guard) Check(destination string) Decision {
	req, ok := g.table[destination]
	if !ok {
		return Decision{}
	}

	sess := g.session.Snapshot()
	if req.RequiresAuth && !sess.Authenticated() {
		g.logger.Debug("guard: login required", "destination", destination)
		return Decision{Redirect: g.login}
	}
	if req.Role == "" {
		return Decision{}
	}

	var role model.Role
	if sess.User != nil {
		role = sess.User.Role
	}
	if role == req.Role {
		return Decision{}
	}

	switch g.policy {
	case RoleEnforce:
		if !sess.Authenticated() {
			return Decision{Redirect: g.login}
		}
		g.logger.Info("guard: role mismatch", "destination", destination, "required", req.Role, "role", role)
		return Decision{Redirect: g.fallback}
	default:
		g.logger.Debug("guard: role not enforced", "destination", destination, "required", req.Role, "role", role)
		return Decision{}
	}
}

// LoadTable decodes a YAML route table of the form
//
//	/workorders:
//	  requiresAuth: true
//	  role: MECHANIC
func LoadTable(r io.Reader) (Table, error) {
	var raw map[string]model.RouteRequirement
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return Table{}, nil
		}
		return nil, fmt.Errorf("decode route table: %w", err)
	}

	table := make(Table, len(raw))
	for dest, req := range raw {
		if !strings.HasPrefix(dest, "/") {
			return nil, fmt.Errorf("route %q: destination must start with /", dest)
		}
		if req.Role != "" {
			role := model.ParseRole(string(req.Role))
			if role == "" {
				return nil, fmt.Errorf("route %q: unknown role %q", dest, req.Role)
			}
			req.Role = role
		}
		table[dest] = req
	}
	return table, nil
}

func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTable(f)
}
