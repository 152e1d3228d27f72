// Package ldaptest provides an in-process stub LDAP server for tests. It
// speaks just enough of RFC 4511 over plain TCP to serve simple bind and
// subtree searches with RFC 2696 result paging over a fixed entry list.
package ldaptest

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// Protocol op tags per RFC 4511.
const (
	applicationBindRequest   ber.Tag = 0
	applicationBindResponse  ber.Tag = 1
	applicationUnbindRequest ber.Tag = 2
	applicationSearchRequest ber.Tag = 3
	applicationSearchEntry   ber.Tag = 4
	applicationSearchDone    ber.Tag = 5
)

// Attribute is one named, ordered value list on a fixture entry.
type Attribute struct {
	Name   string
	Values []string
}

// Entry is a directory object served by the stub.
type Entry struct {
	DN         string
	Attributes []Attribute
}

// Server is a stub LDAP server bound to a loopback port. Configure the
// exported fields before Start; they must not change while the server is
// running.
type Server struct {
	// BindDN and BindPassword are the only credentials accepted by
	// simple bind. Empty BindDN accepts any bind.
	BindDN       string
	BindPassword string

	// Entries are served to every search, in order, regardless of filter.
	Entries []Entry

	// DisablePaging makes the server behave as if RFC 2696 were
	// unsupported: critical paging requests fail with
	// unavailableCriticalExtension, non-critical ones get the full
	// result set without a response control.
	DisablePaging bool

	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	searches int
	closed   bool
}

// Start begins listening on an ephemeral loopback port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.ln = ln
	s.conns = make(map[net.Conn]struct{})
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// URL returns the ldap:// URL of the listening server.
func (s *Server) URL() string {
	return "ldap://" + s.ln.Addr().String()
}

// SearchCount returns the number of search requests served so far. Each
// page fetch is one search request.
func (s *Server) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// Close stops the listener, drops open connections and waits for the
// handlers to exit.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		packet, err := ber.ReadPacket(conn)
		if err != nil {
			return
		}
		if len(packet.Children) < 2 {
			return
		}
		msgID, ok := packet.Children[0].Value.(int64)
		if !ok {
			return
		}
		op := packet.Children[1]

		switch op.Tag {
		case applicationBindRequest:
			if err := s.handleBind(conn, msgID, op); err != nil {
				return
			}
		case applicationSearchRequest:
			if err := s.handleSearch(conn, msgID, packet); err != nil {
				return
			}
		case applicationUnbindRequest:
			return
		default:
			done := resultOp(applicationSearchDone, ldap.LDAPResultProtocolError, "unsupported operation")
			if err := write(conn, envelope(msgID, done, nil)); err != nil {
				return
			}
		}
	}
}

// handleBind answers a simple bind request, checking the configured
// credentials.
func (s *Server) handleBind(conn net.Conn, msgID int64, op *ber.Packet) error {
	var dn, password string
	if len(op.Children) >= 3 {
		dn = string(op.Children[1].Data.Bytes())
		password = string(op.Children[2].Data.Bytes())
	}

	code := uint16(ldap.LDAPResultSuccess)
	diag := ""
	if s.BindDN != "" && (dn != s.BindDN || password != s.BindPassword) {
		code = ldap.LDAPResultInvalidCredentials
		diag = "invalid credentials"
	}
	return write(conn, envelope(msgID, resultOp(applicationBindResponse, code, diag), nil))
}

// handleSearch serves one page of the fixture entries, honoring the
// client's paging control. The filter is not interpreted.
func (s *Server) handleSearch(conn net.Conn, msgID int64, packet *ber.Packet) error {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()

	pageSize, cookie, critical, paged := requestPaging(packet)

	if !paged || (s.DisablePaging && !critical) {
		// Unpaged search, or a server that ignores the non-critical
		// control: full result set, no response control.
		for _, e := range s.Entries {
			if err := write(conn, envelope(msgID, entryOp(e), nil)); err != nil {
				return err
			}
		}
		done := resultOp(applicationSearchDone, ldap.LDAPResultSuccess, "")
		return write(conn, envelope(msgID, done, nil))
	}

	if s.DisablePaging {
		done := resultOp(applicationSearchDone, ldap.LDAPResultUnavailableCriticalExtension, "paging not supported")
		return write(conn, envelope(msgID, done, nil))
	}

	offset := 0
	if len(cookie) > 0 {
		n, err := strconv.Atoi(string(cookie))
		if err != nil || n < 0 || n > len(s.Entries) {
			done := resultOp(applicationSearchDone, ldap.LDAPResultUnwillingToPerform, "bad paging cookie")
			return write(conn, envelope(msgID, done, nil))
		}
		offset = n
	}
	if pageSize <= 0 {
		pageSize = len(s.Entries)
	}

	end := min(offset+pageSize, len(s.Entries))
	for _, e := range s.Entries[offset:end] {
		if err := write(conn, envelope(msgID, entryOp(e), nil)); err != nil {
			return err
		}
	}

	next := ""
	if end < len(s.Entries) {
		next = strconv.Itoa(end)
	}
	control := pagingControl(len(s.Entries), []byte(next))
	done := resultOp(applicationSearchDone, ldap.LDAPResultSuccess, "")
	return write(conn, envelope(msgID, done, []*ber.Packet{control}))
}

// requestPaging extracts the RFC 2696 control from a request envelope.
func requestPaging(packet *ber.Packet) (pageSize int, cookie []byte, critical, ok bool) {
	if len(packet.Children) < 3 {
		return
	}
	controls := packet.Children[2]
	if controls.ClassType != ber.ClassContext || controls.Tag != 0 {
		return
	}
	for _, child := range controls.Children {
		if len(child.Children) < 2 {
			continue
		}
		oid, _ := child.Children[0].Value.(string)
		if oid != ldap.ControlTypePaging {
			continue
		}
		idx := 1
		if b, isBool := child.Children[1].Value.(bool); isBool {
			critical = b
			idx = 2
		}
		if idx >= len(child.Children) {
			return
		}
		inner := ber.DecodePacket(child.Children[idx].Data.Bytes())
		if inner == nil || len(inner.Children) < 2 {
			return
		}
		if n, isInt := inner.Children[0].Value.(int64); isInt {
			pageSize = int(n)
		}
		cookie = append([]byte(nil), inner.Children[1].Data.Bytes()...)
		ok = true
		return
	}
	return
}

// envelope wraps a protocol op (and optional response controls) into an
// LDAPMessage.
func envelope(msgID int64, op *ber.Packet, controls []*ber.Packet) *ber.Packet {
	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Message")
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, msgID, "Message ID"))
	p.AppendChild(op)
	if len(controls) > 0 {
		cs := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
		for _, c := range controls {
			cs.AppendChild(c)
		}
		p.AppendChild(cs)
	}
	return p
}

// resultOp builds a bind response or search done op.
func resultOp(tag ber.Tag, code uint16, diag string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, "Result")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(code), "Result Code"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Matched DN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diag, "Diagnostic Message"))
	return op
}

// entryOp builds a searchResultEntry op.
func entryOp(e Entry) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, applicationSearchEntry, nil, "Search Result Entry")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, e.DN, "Object Name"))

	attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, a := range e.Attributes {
		attr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
		attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a.Name, "Type"))
		vals := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
		for _, v := range a.Values {
			vals.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Value"))
		}
		attr.AppendChild(vals)
		attrs.AppendChild(attr)
	}
	op.AppendChild(attrs)
	return op
}

// pagingControl builds the RFC 2696 response control: total is the
// server's size estimate, an empty cookie signals the final page.
func pagingControl(total int, cookie []byte) *ber.Packet {
	control := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	control.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ldap.ControlTypePaging, "Control Type (Paging)"))

	value := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Control Value (Paging)")
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Search Control Value")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(total), "Paging Size"))
	cookiePacket := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Cookie")
	cookiePacket.Value = cookie
	cookiePacket.Data.Write(cookie)
	seq.AppendChild(cookiePacket)
	value.AppendChild(seq)
	control.AppendChild(value)
	return control
}

func write(conn net.Conn, p *ber.Packet) error {
	if _, err := conn.Write(p.Bytes()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
