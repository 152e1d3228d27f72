package ldapread

import (
	"fmt"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// searchState carries one logical query through the paging cycle:
//
//	Idle -> PageRequested -> PageReceived -> {MorePages -> PageRequested | Exhausted}
//
// Only the entries of the current page are held; a page fetch invalidates
// the entries of the previous page.
type searchState struct {
	queryID string
	filter  string
	baseDN  string
	attrs   []string

	control *ldap.ControlPaging

	entries       []*ldap.Entry
	pos           int // index into entries; -1 before the first Fetch on a page
	moreAvailable bool
	estimated     int // advisory count from the page control, never a loop bound
	pages         int

	active    bool
	exhausted bool
	err       error
}

// Query starts a new paged subtree search and fetches its first page. Any
// previous query's result set is discarded, together with the cursor
// position. attrs is an optional allow-list of attribute names; empty
// means all user attributes. Lists longer than Config.MaxAttributes are
// rejected before any I/O.
func (r *Reader) Query(filter, baseDN string, attrs ...string) error {
	if r.closed || r.conn == nil {
		return &SearchError{Filter: filter, BaseDN: baseDN, cause: ErrClosed}
	}
	if len(attrs) > r.config.MaxAttributes {
		return fmt.Errorf("%w: %d requested, limit is %d",
			ErrTooManyAttributes, len(attrs), r.config.MaxAttributes)
	}

	r.search = searchState{
		queryID: uuid.NewString(),
		filter:  filter,
		baseDN:  baseDN,
		attrs:   append([]string(nil), attrs...),
		control: ldap.NewControlPaging(r.pageSize),
		pos:     -1,
		active:  true,
	}

	r.logger.Debug("starting paged search", map[string]any{
		"query_id":        r.search.queryID,
		"base_dn":         baseDN,
		"filter":          filter,
		"attributes":      r.search.attrs,
		"page_size":       r.pageSize,
		"paging_critical": r.config.PagingCritical,
	})

	return r.fetchPage()
}

// fetchPage executes one page-scoped search and ingests the paging
// response control. On failure the in-progress query state is discarded:
// there is no partial-result recovery, the caller decides whether to retry
// the whole query.
func (r *Reader) fetchPage() error {
	s := &r.search
	if r.conn == nil {
		serr := &SearchError{Filter: s.filter, BaseDN: s.baseDN, cause: ErrClosed}
		r.search = searchState{err: serr, exhausted: true}
		return serr
	}

	var pc ldap.Control = s.control
	if r.config.PagingCritical {
		pc = criticalPaging{s.control}
	}

	// No client-side size or time limit: limiting is delegated entirely
	// to paging.
	req := ldap.NewSearchRequest(
		s.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		s.filter,
		s.attrs,
		[]ldap.Control{pc},
	)

	start := time.Now()
	result, err := r.conn.Search(req)
	if err != nil {
		serr := newSearchError(s.filter, s.baseDN, err)
		r.logger.Error("paged search failed", map[string]any{
			"query_id":    s.queryID,
			"base_dn":     s.baseDN,
			"filter":      s.filter,
			"page":        s.pages + 1,
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		r.search = searchState{err: serr, exhausted: true}
		return serr
	}

	s.pages++
	s.entries = result.Entries
	s.pos = -1

	if responseControl, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging); ok {
		s.control.SetCookie(responseControl.Cookie)
		s.moreAvailable = len(responseControl.Cookie) > 0
		if responseControl.PagingSize > 0 {
			s.estimated = int(responseControl.PagingSize)
		}
	} else if r.config.PagingCritical {
		serr := &SearchError{Filter: s.filter, BaseDN: s.baseDN, cause: ErrPagingNotHonored}
		r.logger.Error("paged search failed", map[string]any{
			"query_id": s.queryID,
			"base_dn":  s.baseDN,
			"filter":   s.filter,
			"error":    ErrPagingNotHonored.Error(),
		})
		r.search = searchState{err: serr, exhausted: true}
		return serr
	} else {
		s.moreAvailable = false
	}

	r.logger.Debug("page received", map[string]any{
		"query_id":        s.queryID,
		"page":            s.pages,
		"entries_in_page": len(s.entries),
		"more_available":  s.moreAvailable,
		"cookie_length":   len(s.control.Cookie),
		"duration_ms":     time.Since(start).Milliseconds(),
	})

	return nil
}

// MoreAvailable reports whether the most recent page response carried a
// non-empty continuation cookie.
func (r *Reader) MoreAvailable() bool { return r.search.moreAvailable }

// EstimatedTotal returns the result-size estimate from the most recent
// page response. Servers are not required to provide a reliable count;
// treat it as informational only.
func (r *Reader) EstimatedTotal() int { return r.search.estimated }

// Err reports the failure that terminated the current query during Fetch,
// if any.
func (r *Reader) Err() error { return r.search.err }

// criticalPaging encodes the RFC 2696 paging control with the criticality
// flag set, which ldap.ControlPaging leaves out. A server that does not
// support paging then fails the search instead of returning an unpaged
// result.
type criticalPaging struct {
	*ldap.ControlPaging
}

func (c criticalPaging) Encode() *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ldap.ControlTypePaging, "Control Type (Paging)"))
	packet.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "Criticality"))

	value := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Control Value (Paging)")
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Search Control Value")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(c.PagingSize), "Paging Size"))
	cookie := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Cookie")
	cookie.Value = c.Cookie
	cookie.Data.Write(c.Cookie)
	seq.AppendChild(cookie)
	value.AppendChild(seq)
	packet.AppendChild(value)

	return packet
}
