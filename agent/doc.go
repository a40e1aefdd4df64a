// Package agent provides the per-agent actor shell: mutex-guarded inbound and
// outbound mailboxes, a kind-to-handler dispatch table, and optional
// capability interfaces discovered by composition rather than inheritance.
//
// An agent's logic only ever runs inside the bus drain pass; handlers must
// not block beyond the bounded reasoning call they may make.
package agent
