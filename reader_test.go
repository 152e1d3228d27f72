package ldapread

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestBindWithoutCredentials(t *testing.T) {
	fc := &fakeConn{}
	reader := newTestReader(fc, nil)

	err := reader.Bind(false)

	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Bind() error = %v, want *BindError", err)
	}
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Bind() error = %v, want ErrNoCredentials", err)
	}
	if len(fc.bindCalls) != 0 {
		t.Error("bind must not reach the server without credentials")
	}
}

func TestBindTwiceWithoutRebind(t *testing.T) {
	fc := &fakeConn{}
	reader := newTestReader(fc, nil)
	reader.SetCredentials("cn=reader,dc=example,dc=org", "secret")

	if err := reader.Bind(false); err != nil {
		t.Fatalf("first Bind() failed: %v", err)
	}

	err := reader.Bind(false)
	if !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("second Bind() error = %v, want ErrAlreadyBound", err)
	}

	if err := reader.Bind(true); err != nil {
		t.Errorf("Bind(rebind) failed: %v", err)
	}
	if len(fc.bindCalls) != 2 {
		t.Errorf("server saw %d binds, want 2", len(fc.bindCalls))
	}
}

func TestRebindReplacesBoundIdentity(t *testing.T) {
	fc := &fakeConn{}
	reader := newTestReader(fc, nil)

	if err := reader.BindAs("cn=first,dc=example,dc=org", "one", false); err != nil {
		t.Fatalf("BindAs() failed: %v", err)
	}

	err := reader.BindAs("cn=second,dc=example,dc=org", "two", false)
	if !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("BindAs() without rebind error = %v, want ErrAlreadyBound", err)
	}
	if got := reader.BoundDN(); got != "cn=first,dc=example,dc=org" {
		t.Errorf("BoundDN() = %q, refused rebind must not change identity", got)
	}

	if err := reader.BindAs("cn=second,dc=example,dc=org", "two", true); err != nil {
		t.Fatalf("BindAs(rebind) failed: %v", err)
	}
	if got := reader.BoundDN(); got != "cn=second,dc=example,dc=org" {
		t.Errorf("BoundDN() = %q, want cn=second,dc=example,dc=org", got)
	}
}

func TestBindServerRejection(t *testing.T) {
	fc := &fakeConn{
		bindErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials")),
	}
	reader := newTestReader(fc, nil)
	reader.SetCredentials("cn=reader,dc=example,dc=org", "wrong")

	err := reader.Bind(false)

	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Bind() error = %v, want *BindError", err)
	}
	if bindErr.ResultCode != ldap.LDAPResultInvalidCredentials {
		t.Errorf("ResultCode = %d, want %d", bindErr.ResultCode, ldap.LDAPResultInvalidCredentials)
	}
	if reader.BoundDN() != "" {
		t.Error("rejected bind must leave the session unbound")
	}
}

func TestSetProtocolVersion(t *testing.T) {
	reader := newTestReader(&fakeConn{}, nil)

	if err := reader.SetProtocolVersion(ProtocolVersion3); err != nil {
		t.Errorf("SetProtocolVersion(3) failed: %v", err)
	}

	err := reader.SetProtocolVersion(2)
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Errorf("SetProtocolVersion(2) error = %v, want *ConnectError", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	fc := &fakeConn{}
	reader := newTestReader(fc, nil)

	if err := reader.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
	if fc.closes != 1 {
		t.Errorf("transport closed %d times, want 1", fc.closes)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	reader := newTestReader(&fakeConn{}, nil)
	reader.SetCredentials("cn=reader,dc=example,dc=org", "secret")
	if err := reader.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if err := reader.Bind(false); !errors.Is(err, ErrClosed) {
		t.Errorf("Bind() after close error = %v, want ErrClosed", err)
	}
	if err := reader.Query("(objectClass=*)", "dc=example,dc=org"); !errors.Is(err, ErrClosed) {
		t.Errorf("Query() after close error = %v, want ErrClosed", err)
	}
	if reader.Fetch() {
		t.Error("Fetch() after close must return false")
	}
}

func TestSetPageSize(t *testing.T) {
	reader := newTestReader(&fakeConn{}, nil)

	if err := reader.SetPageSize(0); err == nil {
		t.Error("SetPageSize(0) expected error")
	}
	if err := reader.SetPageSize(25); err != nil {
		t.Errorf("SetPageSize(25) failed: %v", err)
	}
	if reader.pageSize != 25 {
		t.Errorf("pageSize = %d, want 25", reader.pageSize)
	}
}
