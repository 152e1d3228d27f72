package ldapread

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// AttributeValues is the ordered value set of one attribute on one entry.
// The values are copies: they stay valid across page turnover and belong
// to the caller, who releases the set once done with it.
type AttributeValues struct {
	name   string
	values [][]byte
}

// GetAttribute returns the value set of the named attribute on the entry
// the cursor is positioned at. An absent attribute yields an empty set,
// not an error. Fails with ErrNoCurrentEntry when no entry is positioned.
func (r *Reader) GetAttribute(name string) (*AttributeValues, error) {
	entry := r.entryAt()
	if entry == nil {
		return nil, ErrNoCurrentEntry
	}

	raw := entry.GetRawAttributeValues(name)
	values := make([][]byte, 0, len(raw))
	for _, v := range raw {
		values = append(values, append([]byte(nil), v...))
	}
	return &AttributeValues{name: name, values: values}, nil
}

// Name returns the attribute name the set was retrieved for.
func (v *AttributeValues) Name() string {
	if v == nil {
		return ""
	}
	return v.name
}

// Len returns the number of values. Zero means the attribute was absent
// on the entry.
func (v *AttributeValues) Len() int {
	if v == nil {
		return 0
	}
	return len(v.values)
}

// Values returns the raw values in server order.
func (v *AttributeValues) Values() [][]byte {
	if v == nil {
		return nil
	}
	return v.values
}

// Strings returns the values rendered as strings, in server order.
func (v *AttributeValues) Strings() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.values))
	for i, b := range v.values {
		out[i] = string(b)
	}
	return out
}

// First returns the first value, or nil when the set is empty. Convenient
// for single-valued attributes.
func (v *AttributeValues) First() []byte {
	if v == nil || len(v.values) == 0 {
		return nil
	}
	return v.values[0]
}

// Release zeroes the values and drops them. Releasing a nil set, or a set
// that was already released, is a no-op, never an error.
func (v *AttributeValues) Release() {
	if v == nil {
		return
	}
	for _, b := range v.values {
		for i := range b {
			b[i] = 0
		}
	}
	v.values = nil
}

// DecodeSID renders a binary objectSid value in its S-1-5-21-... string
// form. Active Directory returns objectSid as binary data.
func DecodeSID(value []byte) (string, error) {
	if len(value) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(value))
	}
	return objectsid.Decode(value).String(), nil
}
