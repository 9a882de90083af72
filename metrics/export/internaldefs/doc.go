// Package internaldefs holds the stable metric name and bucket definitions
// shared by the exporter implementations.
//
// Counter and histogram definitions live here so that the Prometheus and
// OTel exporters always agree on names and boundaries. Changing a definition
// here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Depend on any exporter package.
package internaldefs
