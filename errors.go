package ldapread

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Misuse sentinels. They surface wrapped inside the typed errors below and
// are matchable with errors.Is.
var (
	// ErrAlreadyBound is returned by Bind when the session is already
	// bound and rebind was not requested.
	ErrAlreadyBound = errors.New("already bound")

	// ErrNoCredentials is returned by Bind when no credentials have been
	// stored.
	ErrNoCredentials = errors.New("no credentials set")

	// ErrTooManyAttributes is returned by Query when the attribute
	// allow-list exceeds Config.MaxAttributes.
	ErrTooManyAttributes = errors.New("too many attributes requested")

	// ErrNoCurrentEntry is returned by GetAttribute and EntryDN when the
	// cursor is not positioned at an entry.
	ErrNoCurrentEntry = errors.New("no entry retrieved from server")

	// ErrClosed is returned when an operation is attempted on a closed
	// session.
	ErrClosed = errors.New("connection closed")

	// ErrPagingNotHonored is returned inside a *SearchError when the
	// paging control is critical and the server's response carried no
	// paging control.
	ErrPagingNotHonored = errors.New("server did not honor the paging control")
)

// ConnectError reports a failure to establish or configure the connection.
// It is fatal: there is no automatic retry or reconnection.
type ConnectError struct {
	URI   string
	cause error
}

func (e *ConnectError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("ldap connect %s: %v", e.URI, e.cause)
	}
	return fmt.Sprintf("ldap connect: %v", e.cause)
}

func (e *ConnectError) Unwrap() error { return e.cause }

// BindError reports a failed bind attempt: caller misuse (already bound,
// missing credentials) or a protocol-level rejection. ResultCode and the
// server's diagnostic message are populated for server rejections.
type BindError struct {
	DN         string
	ResultCode uint16
	ServerMsg  string
	cause      error
}

func (e *BindError) Error() string {
	msg := "ldap bind failed"
	if e.ResultCode > 0 {
		msg = fmt.Sprintf("ldap bind failed (code %d)", e.ResultCode)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *BindError) Unwrap() error { return e.cause }

// newBindError wraps a server-side bind rejection, pulling the LDAP result
// code and diagnostic message out of go-ldap errors.
func newBindError(dn string, err error) *BindError {
	code, serverMsg := ldapResultInfo(err)
	return &BindError{
		DN:         dn,
		ResultCode: code,
		ServerMsg:  serverMsg,
		cause:      err,
	}
}

// SearchError reports a protocol or server-side search failure. It is
// fatal to the query: the in-progress page state is discarded and no
// partial result set is surfaced.
type SearchError struct {
	Filter     string
	BaseDN     string
	ResultCode uint16
	ServerMsg  string
	cause      error
}

func (e *SearchError) Error() string {
	msg := "ldap search failed"
	if e.ResultCode > 0 {
		msg = fmt.Sprintf("ldap search failed (code %d)", e.ResultCode)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.BaseDN != "" {
		msg += fmt.Sprintf(" (base %s)", e.BaseDN)
	}
	return msg
}

func (e *SearchError) Unwrap() error { return e.cause }

func newSearchError(filter, baseDN string, err error) *SearchError {
	code, serverMsg := ldapResultInfo(err)
	return &SearchError{
		Filter:     filter,
		BaseDN:     baseDN,
		ResultCode: code,
		ServerMsg:  serverMsg,
		cause:      err,
	}
}

// ldapResultInfo extracts the result code and diagnostic message from a
// go-ldap error chain.
func ldapResultInfo(err error) (uint16, string) {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		msg := ""
		if lerr.Err != nil {
			msg = lerr.Err.Error()
		}
		return lerr.ResultCode, msg
	}
	return 0, ""
}
