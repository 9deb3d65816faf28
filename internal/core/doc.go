// Package core provides the domain model and classification logic for
// reconciling sanctions-screening test results.
//
// This package has no I/O of its own. Tabular readers, the backing store and
// the report writer live in sibling packages and talk to core through plain
// values ([InputRow], [ClassifiedRow]) and the [Gateway] interface.
//
// # Engines
//
// Every input row carries results for two matching engines, Open Search (OS)
// and Oracle Text (OT). Columns that belong to one engine are prefixed with
// the engine tag ("OS Test Status", "OT # City matches"); columns without a
// prefix are shared.
//
// # Classification
//
// A row is of interest to an engine only when that engine's test status is
// FAIL. For such a row the [Classifier]:
//
//  1. derives the [RequestKey] from the engine's transaction token and the
//     message type of the row,
//  2. runs Checker-1 (did the screened input reach the matching service?),
//  3. for OT only, runs Checker-2 (were candidates present for the watchlist
//     record?) when Checker-1 answered YES,
//  4. turns the verdicts into a root-cause comment and projects the row onto
//     the engine's frozen [ReportSchema].
//
// # Shared state
//
// The report schemas are frozen once per job by a [SchemaFreezer]; classified
// rows are collected in per-category [Accumulator] values that allow
// concurrent appends and are drained exactly once.
package core
