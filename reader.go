package ldapread

import (
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// conn is the slice of *ldap.Conn the session depends on. Narrowing the
// transport keeps the paged search engine testable against an in-memory
// fake.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Reader is a single-session LDAP read client with transparent result
// paging. It owns one connection, the bind credentials and the state of at
// most one in-flight query. It is not safe for concurrent use.
type Reader struct {
	conn   conn
	config *Config
	logger Logger

	uri      string
	version  int
	pageSize uint32

	creds   credentials
	bound   bool
	boundDN string

	search searchState
	closed bool
}

// Open parses uri (scheme://host[:port]), dials the directory server and
// returns a ready session. cfg may be nil, in which case DefaultConfig is
// used. Dial or configuration failure yields a *ConnectError and no
// session; there is no retry.
func Open(uri string, cfg *Config) (*Reader, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectError{URI: uri, cause: err}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	start := time.Now()
	c, err := ldap.DialURL(uri, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}))
	if err != nil {
		logger.Error("connection failed", map[string]any{
			"uri":   uri,
			"error": err.Error(),
		})
		return nil, &ConnectError{URI: uri, cause: err}
	}

	logger.Debug("connection established", map[string]any{
		"uri":         uri,
		"version":     cfg.Version,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Reader{
		conn:     c,
		config:   cfg,
		logger:   logger,
		uri:      uri,
		version:  cfg.Version,
		pageSize: cfg.PageSize,
	}, nil
}

// SetProtocolVersion selects the protocol version for the session. The
// wire binding speaks LDAPv3 only; any other version is rejected with a
// *ConnectError.
func (r *Reader) SetProtocolVersion(v int) error {
	if v != ProtocolVersion3 {
		return &ConnectError{URI: r.uri, cause: fmt.Errorf("unsupported protocol version %d", v)}
	}
	r.version = v
	return nil
}

// SetCredentials stores the bind identity and secret for a later Bind.
// Prior credentials are overwritten; the old secret is zeroed before the
// new one is stored.
func (r *Reader) SetCredentials(bindDN, password string) {
	r.creds.set(bindDN, password)
}

// Bind authenticates the session with the stored credentials using a
// simple bind. A bound session refuses to bind again unless rebind is
// set; binding without stored credentials fails. Server rejections come
// back as a *BindError carrying the result code and diagnostic message.
func (r *Reader) Bind(rebind bool) error {
	if r.closed || r.conn == nil {
		return &BindError{cause: ErrClosed}
	}
	if r.bound && !rebind {
		return &BindError{DN: r.boundDN, cause: ErrAlreadyBound}
	}
	if !r.creds.present() {
		return &BindError{cause: ErrNoCredentials}
	}

	start := time.Now()
	if err := r.conn.Bind(r.creds.bindDN, r.creds.password()); err != nil {
		r.logger.Error("bind failed", map[string]any{
			"bind_dn":     r.creds.bindDN,
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return newBindError(r.creds.bindDN, err)
	}

	r.bound = true
	r.boundDN = r.creds.bindDN
	r.logger.Info("bind successful", map[string]any{
		"bind_dn":     r.boundDN,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// BindAs stores credentials and binds in one step. The already-bound check
// runs before the stored credentials are replaced, so a refused rebind
// leaves the previous credentials intact.
func (r *Reader) BindAs(bindDN, password string, rebind bool) error {
	if r.bound && !rebind {
		return &BindError{DN: bindDN, cause: ErrAlreadyBound}
	}
	r.creds.set(bindDN, password)
	return r.Bind(rebind)
}

// BoundDN returns the identity the session is currently bound as, or the
// empty string when unbound.
func (r *Reader) BoundDN() string {
	if !r.bound {
		return ""
	}
	return r.boundDN
}

// SetPageSize changes the page size used for subsequent page fetches,
// including the remaining pages of an in-flight query.
func (r *Reader) SetPageSize(n uint32) error {
	if n == 0 {
		return fmt.Errorf("page size must be positive")
	}
	r.pageSize = n
	if r.search.control != nil {
		r.search.control.PagingSize = n
	}
	return nil
}

// Close unbinds and tears down the transport, clears the stored
// credentials and discards any in-flight query state. It is safe to call
// more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.bound = false
	r.boundDN = ""
	r.creds.clear()
	r.search = searchState{}

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	if err != nil {
		r.logger.Warn("close failed", map[string]any{"error": err.Error()})
		return err
	}
	r.logger.Debug("connection closed", map[string]any{"uri": r.uri})
	return nil
}
