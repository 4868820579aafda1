// Package analysis holds the content-analysis collaborators consumed by
// the worker: lyrics retrieval, content scoring, per-unit execution, and
// target enumeration per job type. The worker only sees the narrow
// UnitExecutor and TargetEnumerator interfaces, so the actual analysis
// logic stays swappable.
package analysis
