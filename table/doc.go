// Package table reads delimited numeric tables.
//
// Every data line is a row name followed by the row's values:
//
//	YAL001C<TAB>0.15<TAB>-0.22<TAB>...
//
// A line whose first field is empty is a header and is skipped; this also
// covers empty lines. All data rows must have the same number of values.
package table
