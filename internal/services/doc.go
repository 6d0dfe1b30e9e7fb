// Package services defines the static service registry and the per-run
// lifecycle state of the cloud-phone services.
//
// A Registry is built once per invocation from a list of ServiceSpec values.
// Construction validates the list (unique names, positive priority and
// timeout, complete health predicate) and orders it by priority; ties keep
// their declaration order. StartOrder and StopOrder are exact reverses of one
// another and are computed from the static priority only.
//
// A Run carries one RunState per service for a single start, stop or restart
// run:
//
//	PENDING -> STARTING -> HEALTHY | FAILED        (start)
//	PENDING -> STOPPING -> STOPPED | FAILED        (stop)
//
// Run state is never persisted.
package services
