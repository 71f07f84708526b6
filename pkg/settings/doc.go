// Package settings implements the layered settings model for PostgreSQL
// clusters: structural merging of settings trees, cluster-name template
// expansion, and per-cluster resolution including deployment variants.
//
// All operations are pure: they never mutate their inputs and return
// fresh trees, so resolved settings can be shared freely across callers.
package settings
