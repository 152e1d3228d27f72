package ldapread

import (
	"errors"
	"strconv"

	"github.com/go-ldap/ldap/v3"
)

// newTestReader builds a session around a fake transport.
func newTestReader(c conn, cfg *Config) *Reader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Reader{
		conn:     c,
		config:   cfg,
		logger:   nopLogger{},
		uri:      "ldap://stub.example.org",
		version:  cfg.Version,
		pageSize: cfg.PageSize,
	}
}

// fakeConn is a transport fake with programmable bind behavior.
type fakeConn struct {
	bindErr   error
	bindCalls []string
	closes    int
}

func (f *fakeConn) Bind(username, _ string) error {
	f.bindCalls = append(f.bindCalls, username)
	return f.bindErr
}

func (f *fakeConn) Search(*ldap.SearchRequest) (*ldap.SearchResult, error) {
	return &ldap.SearchResult{Controls: []ldap.Control{&ldap.ControlPaging{}}}, nil
}

func (f *fakeConn) Close() error {
	f.closes++
	return nil
}

// pagedFake serves a fixed entry list in pages, emulating RFC 2696
// cookies the way a directory server would.
type pagedFake struct {
	fakeConn
	entries     []*ldap.Entry
	searches    int
	failOn      int  // fail the nth search, 0 means never
	omitControl bool // respond without a paging control
}

func (f *pagedFake) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.searches++
	if f.failOn != 0 && f.searches == f.failOn {
		return nil, ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("server unwilling"))
	}
	if f.omitControl {
		return &ldap.SearchResult{Entries: f.entries}, nil
	}

	paging := requestPagingControl(req)
	if paging == nil {
		return &ldap.SearchResult{Entries: f.entries}, nil
	}

	offset := 0
	if len(paging.Cookie) > 0 {
		n, err := strconv.Atoi(string(paging.Cookie))
		if err != nil {
			return nil, ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("bad cookie"))
		}
		offset = n
	}
	end := min(offset+int(paging.PagingSize), len(f.entries))

	next := ""
	if end < len(f.entries) {
		next = strconv.Itoa(end)
	}
	response := &ldap.ControlPaging{
		PagingSize: uint32(len(f.entries)),
		Cookie:     []byte(next),
	}
	return &ldap.SearchResult{
		Entries:  f.entries[offset:end],
		Controls: []ldap.Control{response},
	}, nil
}

// scriptedFake plays back a fixed page sequence, cookies attached while
// pages remain. Used to simulate empty pages in the middle of a result.
type scriptedFake struct {
	fakeConn
	pages    [][]*ldap.Entry
	searches int
}

func (f *scriptedFake) Search(*ldap.SearchRequest) (*ldap.SearchResult, error) {
	if f.searches >= len(f.pages) {
		return nil, ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("no more pages scripted"))
	}
	page := f.pages[f.searches]
	f.searches++

	cookie := []byte(nil)
	if f.searches < len(f.pages) {
		cookie = []byte("continue")
	}
	return &ldap.SearchResult{
		Entries:  page,
		Controls: []ldap.Control{&ldap.ControlPaging{Cookie: cookie}},
	}, nil
}

// requestPagingControl digs the paging control out of an outgoing request,
// unwrapping the critical variant.
func requestPagingControl(req *ldap.SearchRequest) *ldap.ControlPaging {
	for _, c := range req.Controls {
		switch pc := c.(type) {
		case criticalPaging:
			return pc.ControlPaging
		case *ldap.ControlPaging:
			return pc
		}
	}
	return nil
}

func testEntry(dn string, attributes map[string][]string) *ldap.Entry {
	return ldap.NewEntry(dn, attributes)
}

func numberedEntries(n int) []*ldap.Entry {
	entries := make([]*ldap.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, testEntry(
			"cn=user"+strconv.Itoa(i)+",ou=users,dc=example,dc=org",
			map[string][]string{"uid": {"user" + strconv.Itoa(i)}},
		))
	}
	return entries
}
