// Package core provides the business logic for cleaning spreadsheets.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Table: an immutable grid of text cells with named columns.
//   - Loader: reads .xlsx and .csv uploads into a [Table] via [LoadTable].
//   - Normalizer: [Normalize] cleans every cell and returns a [ChangeLedger].
//   - Service: the entry point that limits concurrency, caches results and
//     records run history.
//   - Export: [WriteWorkbook] and [WriteChangesCSV] produce downloads.
//
// # Cleaning Rules
//
// Every cell is rendered as text and passed through [CleanText]: each line
// feed and carriage return becomes a single space, then leading and trailing
// whitespace is removed. Header names are trimmed but otherwise kept. A cell
// whose cleaned text differs from the original is recorded in the ledger
// with its spreadsheet row number (data row index + [HeaderRowOffset]).
//
//	cleaned, ledger := core.Normalize(table)
//	for _, entry := range ledger.Entries() {
//	    fmt.Println(entry.Column, len(entry.Changes))
//	}
//
// # Text Encodings
//
// CSV uploads pass through [DecodeText], which strips a UTF-8 or UTF-16 BOM
// and replaces invalid bytes, so the cleaner only ever sees valid UTF-8.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE007: File errors (size, format, encoding, sheet)
//   - CLN001: Cleaned result expired or unknown
//   - UPL001-UPL003: Job errors (busy, cancelled, timeout)
//   - DB001-DB002: History database errors
//
// # History
//
// Each successful clean is recorded through a [HistoryStore]. [PgHistory]
// keeps runs in PostgreSQL; [NopHistory] is used when no database is
// configured. [Service.StartSweeper] expires cached results and purges runs
// older than the configured retention.
package core
