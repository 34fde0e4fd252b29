package cache

import (
	"encoding/binary"
)

type writer struct {
	buf []byte
}

func (w *writer) uvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *writer) int(v int) {
	if v < 0 {
		v = 0
	}
	w.uvarint(uint64(v))
}

func (w *writer) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) fixed64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) string(s string) {
	w.uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, corrupt(ReasonTruncated, "varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) int() (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(maxInt) {
		return 0, corrupt(ReasonTruncated, "integer %d out of range at offset %d", v, r.pos)
	}
	return int(v), nil
}

// count reads a length prefix and rejects values that cannot fit in the remaining bytes, so
// corrupted input never drives large allocations.
func (r *reader) count() (int, error) {
	n, err := r.int()
	if err != nil {
		return 0, err
	}
	if n > r.remaining() {
		return 0, corrupt(ReasonTruncated, "count %d exceeds remaining %d bytes", n, r.remaining())
	}
	return n, nil
}

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, corrupt(ReasonTruncated, "byte at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) fixed64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, corrupt(ReasonTruncated, "checksum at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) string() (string, error) {
	n, err := r.count()
	if err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

const maxInt = int(^uint(0) >> 1)
