// Package core converts tabular data into T-SQL insert scripts.
//
// The package holds the conversion engine and nothing else: no file parsing,
// no HTTP, no storage backends. Callers supply a [Table] and receive an
// ordered [Script]. The same code backs the web handlers, the CLI and tests.
//
// # Pipeline
//
//  1. A [LoadFunc] (see internal/source) parses a CSV or XLSX file into a
//     [Table] of typed [Value] cells.
//  2. [Project] checks the requested columns and restricts the table to them,
//     failing with a [*MissingColumnsError] otherwise.
//  3. [Generate] walks the rows in batches and emits one statement per row,
//     plain or guarded depending on [Mode].
//  4. A [ScriptStore] persists the newline-joined [Script.Text].
//
// [Service.Convert] runs all four steps under a concurrency [Limiter].
//
// # Statement shapes
//
// Plain mode:
//
//	INSERT INTO users (id, name) VALUES (1, 'Ann');
//
// Guarded mode wraps the whole run in one transaction and skips rows that
// already exist, comparing every projected column:
//
//	BEGIN TRANSACTION;
//	IF NOT EXISTS (SELECT 1 FROM users WHERE id = 1 AND name = 'Ann') BEGIN INSERT INTO users (id, name) VALUES (1, 'Ann'); IF @@ERROR <> 0 BEGIN ROLLBACK TRANSACTION; THROW; END END
//	COMMIT TRANSACTION;
//
// Table and column names are written verbatim. Text literals only get their
// single quotes doubled.
//
// # Error Handling
//
// [MissingColumnsError] and [SourceReadError] are distinct types so callers
// can tell bad column lists from bad files. [MapError] turns any error into a
// [UserMessage] with a support code (VAL004, FILE002, ...).
package core
