// Package pgconf renders PostgreSQL configuration files from resolved
// cluster settings: the host-based-authentication file, the main and
// recovery parameter files, and the single-token start file. Rendering
// is deterministic; the same settings always produce byte-identical
// output.
package pgconf
