// Package stores provides Redis-backed record stores for the two token
// families the controller manages: remember-me token series and single-use
// email tokens.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Mutation operations (CheckAndRotate, Consume) run as Lua scripts so the
// read-validate-write cycle is atomic. Records hold only SHA-256 hashes of
// token secrets; the plain secret never touches Redis. Secret comparisons are
// re-checked constant-time in Go after the script returns.
//
// # Architecture boundaries
//
// This package owns persistence and atomicity for token records. It does NOT
// mint token values or decide what a rejected token means — those
// responsibilities belong to the wt root package.
//
// # What this package must NOT do
//
//   - Log token secrets or their hashes.
//   - Import wt or any sibling internal package other than the module root helpers.
package stores
