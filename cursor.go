package ldapread

import "github.com/go-ldap/ldap/v3"

// Fetch advances the cursor to the next entry of the current query,
// requesting further pages from the server as the current one is
// exhausted. It returns false once no entries remain anywhere, and keeps
// returning false for this query afterwards. A page fetch that fails
// parks the cursor; the failure is available from Err.
func (r *Reader) Fetch() bool {
	for {
		s := &r.search
		if !s.active || s.exhausted {
			return false
		}
		if s.pos+1 < len(s.entries) {
			s.pos++
			return true
		}
		if !s.moreAvailable {
			s.exhausted = true
			s.entries = nil
			s.pos = -1
			return false
		}
		// An explicit loop rather than recursion: a run of empty pages
		// must not grow the stack.
		if r.fetchPage() != nil {
			return false
		}
	}
}

// EntryDN returns the distinguished name of the entry the cursor is
// positioned at.
func (r *Reader) EntryDN() (string, error) {
	entry := r.entryAt()
	if entry == nil {
		return "", ErrNoCurrentEntry
	}
	return entry.DN, nil
}

// entryAt returns the current entry, or nil when the cursor is not
// positioned at one.
func (r *Reader) entryAt() *ldap.Entry {
	s := &r.search
	if !s.active || s.exhausted || s.pos < 0 || s.pos >= len(s.entries) {
		return nil
	}
	return s.entries[s.pos]
}
