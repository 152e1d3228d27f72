// Package ldapread provides a small synchronous client for reading from
// LDAP directories, with transparent handling of RFC 2696 simple paged
// results.
//
// A Reader owns exactly one connection and serves one query at a time.
// Query issues a subtree search bounded only by the configured page size;
// Fetch then iterates entries across page boundaries, requesting further
// pages from the server as each page is exhausted. At most one page of
// entries is held in memory, so unbounded result sets can be walked with
// bounded memory.
//
// # Basic Usage
//
//	reader, err := ldapread.Open("ldap://ldap.example.org", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer reader.Close()
//
//	if err := reader.BindAs("cn=reader,dc=example,dc=org", "secret", false); err != nil {
//		log.Fatal(err)
//	}
//
//	err = reader.Query("(objectClass=user)", "ou=users,dc=example,dc=org", "sAMAccountName")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for reader.Fetch() {
//		values, err := reader.GetAttribute("sAMAccountName")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s\n", values.First())
//		values.Release()
//	}
//	if err := reader.Err(); err != nil {
//		log.Fatal(err)
//	}
//
// # Error Handling
//
// Operations fail with typed errors: *ConnectError for dial and protocol
// setup failures, *BindError for authentication failures and bind misuse,
// *SearchError for server-side search failures. Misuse sentinels
// (ErrAlreadyBound, ErrNoCredentials, ErrTooManyAttributes,
// ErrNoCurrentEntry) are matchable with errors.Is through the typed
// errors. Nothing is retried internally; retry policy belongs to the
// caller.
//
// # Concurrency
//
// A Reader is not safe for concurrent use. One goroutine owns the
// connection, the credentials and the in-flight page state.
package ldapread
