package ldapread

// credentials holds the bind identity and secret for a session. The secret
// lives in a byte slice owned by the store so it can be zeroed before
// replacement and on session teardown; the runtime does not guarantee that
// for strings.
type credentials struct {
	bindDN string
	secret []byte
	exists bool
}

// set replaces the stored credentials, clearing the old secret first.
func (c *credentials) set(bindDN, password string) {
	c.clear()
	c.bindDN = bindDN
	c.secret = []byte(password)
	c.exists = true
}

// clear zeroes the secret and forgets the identity.
func (c *credentials) clear() {
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.secret = nil
	c.bindDN = ""
	c.exists = false
}

func (c *credentials) present() bool { return c.exists }

func (c *credentials) password() string { return string(c.secret) }
