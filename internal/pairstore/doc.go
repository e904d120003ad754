// Package pairstore holds the pairwise distance cache.
//
// The store is a packed upper-triangular matrix: for n rows it keeps exactly
// n*(n-1)/2 values, one per unordered pair (i, j) with i < j, enumerated in
// row-major order of i then j. Index is the only mapping from a pair to its
// slot; At canonicalizes argument order before calling it.
//
//	slot  0      1      2      3      4      5
//	pair (0,1) (0,2) (0,3) (1,2) (1,3) (2,3)     n = 4
//
// Stores are built once (Build, concurrently over disjoint slot ranges) and
// are read-only afterwards. Encode and Decode persist a store so that
// repeated runs over the same normalized table can skip the O(n²·d) build.
package pairstore
