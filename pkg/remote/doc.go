// Package remote implements the provisioning collaborators over the
// SSH transport: the file writer with change detection, the package
// installer, the service controller, and the script runner. Every
// operation checks the host's current state first and reports whether
// it actually changed anything.
package remote
