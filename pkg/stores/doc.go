// Package stores persists the outcome of resolution passes.
//
// The SQLite store keeps one row per pass, the warnings it emitted and the
// JSON snapshot of every successful pass. Interactive tooling uses LastValid
// to keep serving the previous configuration while the current one is
// invalid. Schema changes are embedded migrations applied with
// golang-migrate.
package stores
