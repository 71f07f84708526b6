// Package engine orchestrates cluster provisioning: it holds the
// settings registry, resolves per-cluster configuration, generates the
// configuration files, and drives the external collaborators that
// install packages, write files, and control services on the target
// host.
//
// The resolution and generation core is pure and performs no I/O; all
// side effects go through the collaborator interfaces defined here, so
// the Provisioner can be exercised end to end with in-memory fakes.
package engine
