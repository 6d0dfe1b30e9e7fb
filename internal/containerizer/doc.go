// Package containerizer queries the container runtime that hosts the
// Android container(s) of a cloud-phone instance.
//
// Only read operations are exposed; starting and stopping containers is the
// supervisor's job. The CLI runtime works with docker and podman, which accept
// the same ps/inspect templates.
package containerizer
