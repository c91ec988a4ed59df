// Package parse decodes instrument files into [pulse.Dataset] values.
//
// Three file kinds are understood:
//
//   - raw: TAP-1 numeric token stream with metadata at fixed positions
//   - tabular: TAP-2/3 xlsx workbook, one species per sheet after the third
//   - serialized: JSON snapshot of a Dataset, optionally zstd-compressed
//
// [DetectKind] guesses the kind from the file name and leading bytes.
// [Batch] parses an upload of several files in file-name order so that the
// resulting dataset order, and therefore registry key assignment, only
// depends on the set of files.
//
// Every failure wraps [pulse.ErrParse]; failures from [ParseFile] and
// [Batch] are additionally wrapped in a [*FileError] naming the file.
package parse
