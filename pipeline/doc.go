// Package pipeline runs ordered steps against a store.
//
// Every run starts with a preflight pass: each step runs on a metadata-only
// copy of the store, the paths before and after the step are compared, and
// the renames that comparison reveals are pushed into the path parameters
// of every later step. Paths a step creates are recorded by id and never
// taken as rename candidates. Execute then runs the steps on the real store
// with the rewritten parameters.
//
// Steps are found by name in an explicit Registry; there is no global step
// table.
package pipeline
