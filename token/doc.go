// Package token signs and verifies the remember-me cookie envelope using
// configured signing keys and strict validation semantics. The envelope is a
// compact JWT binding a user ID to a token series; revocation and rotation
// state lives server-side and is not this package's concern.
package token
