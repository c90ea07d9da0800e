// Package config implements the server-side Config component: the set
// of declared screens, their aliases, the neighbor-link graph between
// them, and the listen addresses. Construction is validated up front;
// once built a Config is immutable and safe to read concurrently —
// supervisor.Server.SetConfig swaps the pointer under its own lock
// rather than mutating one in place.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shanesims/screenlink/internal/layout"
)

// DefaultBindTimeout is how long the acceptor keeps retrying
// AddressInUse before giving up, per spec §4.8.
const DefaultBindTimeout = 5 * time.Minute

type neighborKey struct {
	screen string
	side   layout.Side
}

// Config is the immutable, validated set of declared screens.
type Config struct {
	canonical    map[string]bool
	aliasToCanon map[string]string
	neighbors    map[neighborKey]string
	order        []string // canonical names, declaration order

	serverAddr  string
	adminAddr   string
	bindTimeout time.Duration
	options     map[string]string
}

// Link is one directed neighbor edge, as declared in the config file's
// `links` section.
type Link struct {
	Screen string
	Side   layout.Side
	Target string
}

// Builder accumulates screens/aliases/links before validation. The
// zero value is ready to use.
type Builder struct {
	screens     []string
	aliases     map[string]string
	links       []Link
	serverAddr  string
	adminAddr   string
	bindTimeout time.Duration
	options     map[string]string
}

func NewBuilder() *Builder {
	return &Builder{
		aliases:     make(map[string]string),
		options:     make(map[string]string),
		bindTimeout: DefaultBindTimeout,
	}
}

func (b *Builder) AddScreen(canonical string) *Builder {
	b.screens = append(b.screens, canonical)
	return b
}

func (b *Builder) AddAlias(alias, canonical string) *Builder {
	b.aliases[alias] = canonical
	return b
}

func (b *Builder) AddLink(screen string, side layout.Side, target string) *Builder {
	b.links = append(b.links, Link{Screen: screen, Side: side, Target: target})
	return b
}

func (b *Builder) SetOption(key, value string) *Builder {
	b.options[key] = value
	return b
}

func (b *Builder) SetServerAddress(addr string) *Builder {
	b.serverAddr = addr
	return b
}

func (b *Builder) SetAdminAddress(addr string) *Builder {
	b.adminAddr = addr
	return b
}

func (b *Builder) SetBindTimeout(d time.Duration) *Builder {
	b.bindTimeout = d
	return b
}

// Build validates the accumulated declarations and produces a Config.
// Rejects duplicate canonical names, aliases colliding with canonical
// names, and neighbor links to undefined names (per spec §4.1).
func (b *Builder) Build() (*Config, error) {
	canonical := make(map[string]bool, len(b.screens))
	order := make([]string, 0, len(b.screens))
	for _, name := range b.screens {
		if canonical[name] {
			return nil, fmt.Errorf("config: duplicate canonical screen %q", name)
		}
		canonical[name] = true
		order = append(order, name)
	}

	aliasToCanon := make(map[string]string, len(b.aliases))
	for alias, target := range b.aliases {
		if canonical[alias] {
			return nil, fmt.Errorf("config: alias %q collides with canonical screen name", alias)
		}
		if !canonical[target] {
			return nil, fmt.Errorf("config: alias %q refers to undefined screen %q", alias, target)
		}
		aliasToCanon[alias] = target
	}

	neighbors := make(map[neighborKey]string, len(b.links))
	for _, link := range b.links {
		if !canonical[link.Screen] {
			return nil, fmt.Errorf("config: link declared on undefined screen %q", link.Screen)
		}
		if !canonical[link.Target] {
			return nil, fmt.Errorf("config: link %s/%s refers to undefined screen %q", link.Screen, link.Side, link.Target)
		}
		neighbors[neighborKey{link.Screen, link.Side}] = link.Target
	}

	if b.serverAddr == "" {
		return nil, fmt.Errorf("config: server address is required")
	}

	options := make(map[string]string, len(b.options))
	for k, v := range b.options {
		options[k] = v
	}

	bindTimeout := b.bindTimeout
	if bindTimeout <= 0 {
		bindTimeout = DefaultBindTimeout
	}

	return &Config{
		canonical:    canonical,
		aliasToCanon: aliasToCanon,
		neighbors:    neighbors,
		order:        order,
		serverAddr:   b.serverAddr,
		adminAddr:    b.adminAddr,
		bindTimeout:  bindTimeout,
		options:      options,
	}, nil
}

// IsScreen reports whether name (canonical or alias) is declared.
func (c *Config) IsScreen(name string) bool {
	if c.canonical[name] {
		return true
	}
	_, ok := c.aliasToCanon[name]
	return ok
}

// CanonicalName resolves an alias or canonical name to its canonical
// form, or "" if name isn't declared.
func (c *Config) CanonicalName(name string) string {
	if c.canonical[name] {
		return name
	}
	if canon, ok := c.aliasToCanon[name]; ok {
		return canon
	}
	return ""
}

// Neighbor returns the canonical name of the screen declared on the
// given side of canonical, or "" if no link is declared there.
func (c *Config) Neighbor(canonical string, side layout.Side) string {
	return c.neighbors[neighborKey{canonical, side}]
}

// Screens returns the canonical screen names in declaration order.
func (c *Config) Screens() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// HasPrimary reports whether name is among the declared canonical
// screens — used by SetConfig to reject configs missing the primary.
func (c *Config) HasPrimary(name string) bool {
	return c.canonical[name]
}

func (c *Config) ServerAddress() string { return c.serverAddr }
func (c *Config) AdminAddress() string  { return c.adminAddr }
func (c *Config) BindTimeout() time.Duration { return c.bindTimeout }

// Option returns a free-form `options:` section value.
func (c *Config) Option(key string) (string, bool) {
	v, ok := c.options[key]
	return v, ok
}

// Options returns a copy of the free-form options map.
func (c *Config) Options() map[string]string {
	out := make(map[string]string, len(c.options))
	for k, v := range c.options {
		out[k] = v
	}
	return out
}

// ActiveSideMask reports which of the primary's four sides have a
// declared neighbor, for PrimaryClient.Reconfigure.
func (c *Config) ActiveSideMask(primary string) [4]bool {
	var mask [4]bool
	for i, side := range layout.Sides {
		mask[i] = c.Neighbor(primary, side) != ""
	}
	return mask
}

func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config{screens=%v, server=%s}", c.order, c.serverAddr)
	return b.String()
}
