// Package runtime implements the execution engine embedded in every
// compiled sealed-runner binary. It deserializes the plan and
// variables sealed in by pkg/template, builds a per-batch dependency
// graph, dispatches tasks to the module functions registered by the
// generated modules_generated.go, collects host facts once per run, and
// reports progress back to an optional controller.
//
// None of this package's types ever appear in a request/response pair
// with a running controller process: a sealed binary is handed its
// plan at compile time and runs to completion standalone, posting
// best-effort progress as it goes.
package runtime
