// Package dependency holds the dependency metadata of the cloud-phone
// services as a small directed graph.
//
// Nodes carry the Requires, Wants and After relationships declared by the
// process supervisor. The graph answers display queries only: what a service
// requires, and which services require or want it. It does not compute or
// enforce an order. Start and stop order come from the static registry
// priority; a cycle in supervisor metadata is reported as-is.
package dependency
