// Package result writes clustering results.
//
// WriteTSV produces the assignment table:
//
//	Rowname<sep>Cluster
//	YAL001C<sep>3
//
// Cluster ids are written 1-based. SQLiteStore keeps a history of runs and
// their assignments in a local SQLite database.
package result
