package ldapread

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// ProtocolVersion3 is the only protocol version the wire binding speaks.
const ProtocolVersion3 = 3

// Config holds the session configuration. Start from DefaultConfig and
// override fields as needed; a nil Config passed to Open is equivalent to
// DefaultConfig().
type Config struct {
	// Version is the LDAP protocol version. Only version 3 is supported.
	Version int `default:"3"`

	// PageSize bounds the number of entries requested per page.
	PageSize uint32 `default:"1000"`

	// PagingCritical marks the paging control critical: a server that
	// does not support RFC 2696 fails the search instead of silently
	// returning an unpaged result.
	PagingCritical bool `default:"true"`

	// MaxAttributes bounds the attribute allow-list accepted by Query.
	MaxAttributes int `default:"50"`

	// Timeout applies to dialing only. Searches carry no client-side
	// size or time limits; result limiting is delegated to paging.
	Timeout time.Duration `default:"30s"`

	// Logger receives structured operation logs. Nil means no logging.
	Logger Logger
}

// DefaultConfig returns a configuration populated with the documented
// defaults: LDAPv3, page size 1000, mandatory paging, at most 50 requested
// attributes per query.
func DefaultConfig() *Config {
	c := &Config{}
	defaults.MustSet(c)
	return c
}

// Validate checks the configuration for values the session cannot operate
// with.
func (c *Config) Validate() error {
	if c.Version != ProtocolVersion3 {
		return fmt.Errorf("unsupported protocol version %d", c.Version)
	}
	if c.PageSize == 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxAttributes <= 0 {
		return fmt.Errorf("max attributes must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}
