package ldapread

import "testing"

func TestCredentialsReplaceZeroesOldSecret(t *testing.T) {
	var creds credentials
	creds.set("cn=first,dc=example,dc=org", "first-secret")

	old := creds.secret
	creds.set("cn=second,dc=example,dc=org", "second-secret")

	for i, b := range old {
		if b != 0 {
			t.Fatalf("old secret byte %d not zeroed", i)
		}
	}
	if creds.bindDN != "cn=second,dc=example,dc=org" {
		t.Errorf("bindDN = %q after replace", creds.bindDN)
	}
	if creds.password() != "second-secret" {
		t.Error("new secret not stored")
	}
}

func TestCredentialsClear(t *testing.T) {
	var creds credentials
	if creds.present() {
		t.Error("fresh store should report no credentials")
	}

	creds.set("cn=user,dc=example,dc=org", "secret")
	if !creds.present() {
		t.Error("present() = false after set")
	}

	secret := creds.secret
	creds.clear()

	if creds.present() {
		t.Error("present() = true after clear")
	}
	for i, b := range secret {
		if b != 0 {
			t.Fatalf("secret byte %d not zeroed on clear", i)
		}
	}
	if creds.bindDN != "" {
		t.Error("bindDN retained after clear")
	}
}
