// Package cleaning implements the region-aware record cleaning engine.
//
// The engine turns loosely structured spreadsheet rows into canonical
// contact records. It performs no I/O: callers hand it in-memory rows and a
// region key, and it hands back cleaned records, validation issues and a
// quality score. Storage, file parsing and the language-model service all
// live in other packages and reach the engine through plain values or the
// [CorrectionSource] interface.
//
// # Pipeline
//
//  1. [MapRawRow] projects arbitrary column names onto the nine canonical
//     fields using a fixed alias table ([NormalizeFieldName]).
//  2. [CleanRecord] runs the per-field cleaners ([CleanName], [CleanPhone],
//     [CleanEmail], [CleanPostalCode], [CleanAddress]) and validators, then
//     scores the record and derives its [Status].
//  3. [CleanBatch] fans [CleanRecord] out over a batch with bounded
//     concurrency and summarizes the results.
//  4. [Enhancer.Enhance] optionally sends low-quality records, ten at a
//     time, to a [CorrectionSource] and applies confidence-gated patches.
//
// # Scoring
//
// Every record starts at 100. Missing required fields cost 20 points
// (postal code 15) and force review; format problems cost 10 points
// (email 5). Scores never drop below 0. A high-confidence enhancement adds
// 15 points, capped at 100.
//
// # Regions
//
// Region rules come from a closed table ([SupportedRegions], [ConfigFor]).
// Unknown region keys resolve to the international rules.
package cleaning
