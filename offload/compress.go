package offload

import (
	"encoding/binary"
)

// Compression container format (spec.md §4.6, §6): 4-byte magic "QCMP",
// 4-byte little-endian original size, then a stream of tagged records: a
// literal record is flag byte 0x00 followed by one raw byte; a match
// record is flag byte 0x01 followed by a 2-byte little-endian distance and
// a 1-byte length. The match finder is a greedy LZ77 over a 4096-byte
// sliding window; spec.md's open questions leave the matching strategy
// free as long as decompress inverts compress on any input.
var qcmpMagic = [4]byte{'Q', 'C', 'M', 'P'}

const (
	window        = 4096
	minMatchLen   = 3
	maxMatchLen   = 255
	flagLiteral   = 0x00
	flagMatch     = 0x01
	headerLen     = 4 + 4
)

// Compress encodes src into the QCMP container.
func Compress(src []byte) []byte {
	out := make([]byte, headerLen, headerLen+len(src)/2+8)
	copy(out[0:4], qcmpMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(src)))

	// hash chains over 3-byte prefixes, grounded on the classic LZ77
	// deflate-style match finder shape (not a copy of any single example's
	// code; the examples pack carries no general LZ77 implementation to
	// ground this on more specifically than the algorithm's textbook
	// description).
	const hashBits = 15
	head := make([]int, 1<<hashBits)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int, len(src))

	hash3 := func(i int) uint32 {
		return (uint32(src[i])<<16 | uint32(src[i+1])<<8 | uint32(src[i+2])) * 2654435761 >> (32 - hashBits)
	}

	i := 0
	for i < len(src) {
		bestLen := 0
		bestDist := 0
		if i+minMatchLen <= len(src) {
			h := hash3(i)
			lo := i - window
			if lo < 0 {
				lo = 0
			}
			for cand := head[h]; cand >= lo; cand = prev[cand] {
				if cand < 0 {
					break
				}
				l := matchLen(src, cand, i)
				if l > bestLen {
					bestLen = l
					bestDist = i - cand
					if bestLen >= maxMatchLen {
						break
					}
				}
			}
		}
		if bestLen >= minMatchLen {
			out = append(out, flagMatch)
			var distBuf [2]byte
			binary.LittleEndian.PutUint16(distBuf[:], uint16(bestDist))
			out = append(out, distBuf[:]...)
			out = append(out, byte(bestLen))
			end := i + bestLen
			for ; i < end; i++ {
				if i+2 < len(src) {
					h := hash3(i)
					prev[i] = head[h]
					head[h] = i
				}
			}
		} else {
			out = append(out, flagLiteral, src[i])
			if i+2 < len(src) {
				h := hash3(i)
				prev[i] = head[h]
				head[h] = i
			}
			i++
		}
	}
	return out
}

func matchLen(src []byte, a, b int) int {
	n := 0
	for b+n < len(src) && n < maxMatchLen && src[a+n] == src[b+n] {
		n++
	}
	return n
}

// Decompress inverts Compress. It returns a Malformed-shaped error (via
// the caller wrapping it in qerr.OffloadError) on any structural
// violation: bad magic, truncated records, or an out-of-range match.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < headerLen || data[0] != qcmpMagic[0] || data[1] != qcmpMagic[1] || data[2] != qcmpMagic[2] || data[3] != qcmpMagic[3] {
		return nil, errMalformed("bad magic")
	}
	origSize := binary.LittleEndian.Uint32(data[4:8])
	out := make([]byte, 0, origSize)
	body := data[headerLen:]

	for pos := 0; pos < len(body); {
		switch body[pos] {
		case flagLiteral:
			if pos+1 >= len(body) {
				return nil, errMalformed("truncated literal record")
			}
			out = append(out, body[pos+1])
			pos += 2
		case flagMatch:
			if pos+3 >= len(body) {
				return nil, errMalformed("truncated match record")
			}
			dist := int(binary.LittleEndian.Uint16(body[pos+1 : pos+3]))
			length := int(body[pos+3])
			if dist <= 0 || dist > len(out) {
				return nil, errMalformed("match distance out of range")
			}
			start := len(out) - dist
			for k := 0; k < length; k++ {
				out = append(out, out[start+k])
			}
			pos += 4
		default:
			return nil, errMalformed("unknown record flag")
		}
	}
	if uint32(len(out)) != origSize {
		return nil, errMalformed("decompressed size mismatch")
	}
	return out, nil
}

type malformedError struct{ detail string }

func (e *malformedError) Error() string { return e.detail }

func errMalformed(detail string) error { return &malformedError{detail} }
