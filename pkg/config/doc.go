// Package config loads and validates the YAML settings file that
// drives provisioning: the target instance, its SSH connection, the
// global settings overrides, and the named clusters. Validated input
// is converted to the dynamic settings tree the resolution engine
// works on.
package config
