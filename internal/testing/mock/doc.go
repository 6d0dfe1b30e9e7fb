// Package mock provides test doubles for the orchestrator's collaborators.
//
//   - MockClock: a clock whose Sleep advances time instead of blocking.
//   - Supervisor: an in-memory process supervisor that records every
//     primitive call and can be told to fail individual services.
//   - Runner: a scripted health check runner.
//
// Together they let lifecycle scenarios (timeouts, escalation, restart
// ordering) run instantly and deterministically.
package mock
