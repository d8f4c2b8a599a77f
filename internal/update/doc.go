// Package update owns the firmware update campaign engine.
//
// Ownership boundary:
// - per-device session state machine (discovery, negotiation, transfer, activation)
// - request/response exchange with retry and deadline handling
// - FD phase tracking
// - campaign scheduling, first-error aggregation and progress reporting
//
// Sessions never block: every step polls its transport once and returns, and
// the campaign round-robins steps across all sessions on one goroutine.
package update
