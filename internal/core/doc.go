// Package core provides the business logic for cleaning uploaded contact
// batches.
//
// The package holds the domain workflow independent of any transport. Web
// handlers, command line tools and tests all drive it through [Service],
// which sits on a [Repository] (PostgreSQL in production) and a
// storage.Store for the files themselves.
//
// # Batch Lifecycle
//
//  1. [Service.UploadBatch] stores the original file, parses the header and
//     rows, and creates a pending batch with one raw record per row.
//  2. [Service.ProcessBatch] takes a processing slot from the
//     [ProcessLimiter], creates a job and cleans the batch in the
//     background. Progress is written to the job row as records finish.
//     When requested, records that still look weak are sent through the
//     correction pass.
//  3. Reviewers page through the review queue, patch cleaned values and
//     approve or reject records, singly or in bulk.
//  4. [Service.ExportBatch] writes the cleaned records as CSV or XLSX.
//
// # Ownership
//
// Every read and write is scoped to the acting user. Batches, records,
// jobs and files owned by someone else are reported as not found.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - BAT001-BAT006: Batches, records, issues, jobs and keys
//   - FILE001-FILE006: Uploaded and stored files
//   - VAL001-VAL002: Request validation
//   - UPL001-UPL003: Capacity, cancellation and timeouts
//   - AUTH001-AUTH002: Authentication
//   - LLM001-LLM003: Correction service
//   - DB001-DB007: Database errors
//
// # Audit Logging
//
// Every change is recorded in the audit log with the caller's address and
// user agent. Entries carry a severity in their metadata:
//
//   - Low: Issue resolution
//   - Medium: Record edits and reviews
//   - High: Uploads, cleaning runs and exports
//   - Critical: Batch deletion and key revocation
//
// Entries older than the retention period are purged by
// [Service.StartAuditPurgeScheduler].
package core
