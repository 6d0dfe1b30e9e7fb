// Package health executes service health predicates and polls them until a
// service is ready.
//
// A predicate is described by a PredicateSpec (process, port, http, file or
// command check). Executor runs it once and separates "ran and failed" (false,
// nil) from "could not run" (*ExecError). Poller invokes it at a fixed
// interval until it passes or the service timeout elapses; there is no
// debounce, one passing invocation is enough.
package health
