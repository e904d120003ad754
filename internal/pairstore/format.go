package pairstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hupe1980/anneal/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how Encode compresses the distance payload.
type Compression uint8

const (
	// CompressionNone stores raw little-endian float64 values.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "", "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unsupported compression: %q (valid: none, lz4, zstd)", s)
	}
}

var (
	// ErrBadMagic is returned when the input is not a distance snapshot.
	ErrBadMagic = errors.New("pairstore: invalid snapshot magic")
	// ErrUnsupportedVersion is returned for snapshots written by a newer format.
	ErrUnsupportedVersion = errors.New("pairstore: unsupported snapshot version")
	// ErrChecksum is returned when the payload does not match its CRC32C.
	ErrChecksum = errors.New("pairstore: snapshot checksum mismatch")
)

var (
	snapshotMagic   = [4]byte{'A', 'P', 'D', 'S'}
	snapshotVersion = uint16(1)
)

// magic(4) version(2) compression(1) reserved(1) n(8) rawLen(8) payloadLen(8) crc(4)
const headerLen = 36

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode writes the store as a snapshot.
//
// If compression does not shrink the payload by at least 10% the raw bytes
// are written instead and the header records CompressionNone.
func (s *Store) Encode(w io.Writer, c Compression) (int64, error) {
	raw := make([]byte, len(s.data)*8)
	for i, v := range s.data {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	payload, used, err := compress(raw, c)
	if err != nil {
		return 0, err
	}

	var hdr [headerLen]byte
	copy(hdr[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotVersion)
	hdr[6] = byte(used)
	// hdr[7] reserved
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(s.n))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(len(raw)))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[32:36], hash.CRC32C(payload))

	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), fmt.Errorf("failed to write snapshot header: %w", err)
	}
	m, err := w.Write(payload)
	if err != nil {
		return int64(n + m), fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	return int64(n + m), nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Store, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if [4]byte(hdr[0:4]) != snapshotMagic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	c := Compression(hdr[6])
	n := binary.LittleEndian.Uint64(hdr[8:16])
	rawLen := binary.LittleEndian.Uint64(hdr[16:24])
	payloadLen := binary.LittleEndian.Uint64(hdr[24:32])
	sum := binary.LittleEndian.Uint32(hdr[32:36])

	if n > math.MaxInt32 {
		return nil, fmt.Errorf("pairstore: snapshot row count %d out of range", n)
	}
	if want := uint64(Pairs(int(n))) * 8; rawLen != want {
		return nil, &SizeError{Rows: int(n), Expected: Pairs(int(n)), Actual: int(rawLen / 8)}
	}
	if payloadLen > rawLen+rawLen/2+1024 {
		return nil, fmt.Errorf("pairstore: snapshot payload of %d bytes exceeds bound for %d rows", payloadLen, n)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read snapshot payload: %w", err)
	}
	if hash.CRC32C(payload) != sum {
		return nil, ErrChecksum
	}

	raw, err := decompress(payload, c, int(rawLen))
	if err != nil {
		return nil, err
	}

	data := make([]float64, len(raw)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return New(int(n), data)
}

func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		out = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("unsupported compression: %v", c)
	}

	// n == 0 from lz4 means incompressible
	if len(out) == 0 || float64(len(out)) > float64(len(raw))*0.9 {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(payload []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("pairstore: raw payload is %d bytes, want %d", len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != rawLen {
			return nil, errors.New("pairstore: decompressed size mismatch")
		}
		return raw, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(raw) != rawLen {
			return nil, errors.New("pairstore: decompressed size mismatch")
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("pairstore: unknown compression %d", c)
	}
}
