// Package orchestrator is the lifecycle controller of the cloud-phone host.
//
// It walks the static service registry in priority order and drives the
// process supervisor and the health poller:
//
//   - StartAll starts services in ascending priority, one at a time. Each
//     service is resolved HEALTHY or FAILED before the next one is touched.
//     Services that are already live are skipped and counted as HEALTHY.
//   - StopAll stops live services in descending priority. A failure to stop
//     one service never prevents the others from being stopped. The
//     supervisory group is stopped once at the end.
//   - RestartAll is StopAll, a settle delay, then StartAll.
//
// # Escalation
//
// When a service ends FAILED during StartAll and services remain, the
// EscalationPolicy decides whether the run goes on. Unattended always
// continues; Attended asks the operator through a Prompter and aborts on
// anything but an explicit yes. An aborted run leaves the remaining services
// PENDING.
//
// # Reports
//
// Status reports liveness, Health runs each live service's predicate once,
// and Deps shows the supervisor's dependency metadata. None of them change
// service state.
//
// The orchestrator holds no state between operations and is meant to be used
// from a single goroutine.
package orchestrator
