// Package runner defines the shared vocabulary of the engine and the contract
// every inference backend implements. It is structured into small files by
// concern:
//
//   - capability.go: Capability enumeration and parsing.
//   - descriptor.go: Descriptor, Vendor, Priority and Requirements.
//   - request.go: Request (immutable inference input) and well-known keys.
//   - result.go: Result tagged union (Success | Failure).
//   - errors.go: Error with stable codes, classes and IsX helpers.
//   - runner.go: the Runner interface and optional extensions.
//
// Nothing here depends on other engine packages; registry, manager,
// orchestrator and coordinator all build on top of it.
package runner
