// Package manager selects and manages the lifecycle of runners. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: lifecycle state and per-runner instance bookkeeping.
//   - errors.go: error constructors mapped onto runner error codes.
//   - selector.go: per-request runner selection (pinning, support filter, tie-break).
//   - ensure.go: load-on-first-use, serialized per runner.
//   - queue_admission.go: per-runner concurrency limits and queueing.
//   - evict.go: LRU eviction to fit the memory budget.
//   - unload.go: drain and unload.
//   - status_report.go: Status and ListRunners projections.
//   - ops.go: background warm-up.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//
// Callers normally use Acquire, which returns a Lease holding a loaded runner
// and an admission slot; Release must be called when the work is done.
package manager
