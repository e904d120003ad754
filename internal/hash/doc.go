// Package hash provides the CRC32-Castagnoli (CRC32C) checksum used across
// the module: distance snapshot integrity, S3 upload checksums and the
// fingerprint that names distance cache entries.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
