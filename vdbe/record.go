package vdbe

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ----------------------------------------------------------------------------
// Record format: a varint header size, one varint serial type per column and
// then the column bodies. Serial types follow the on-disk convention:
//
//   0        NULL
//   1..6     big endian signed integer of 1,2,3,4,6,8 bytes
//   7        IEEE float64
//   8, 9     the constants 0 and 1
//   N>=12    even: blob of (N-12)/2 bytes, odd: text of (N-13)/2 bytes
// ----------------------------------------------------------------------------

func serialTypeOf(v Value) uint64 {
	switch v.Ty {
	case ValueNull:
		return 0
	case ValueInt:
		i := v.Int
		switch {
		case i == 0:
			return 8
		case i == 1:
			return 9
		case i >= -128 && i <= 127:
			return 1
		case i >= -32768 && i <= 32767:
			return 2
		case i >= -8388608 && i <= 8388607:
			return 3
		case i >= math.MinInt32 && i <= math.MaxInt32:
			return 4
		case i >= -140737488355328 && i <= 140737488355327:
			return 5
		default:
			return 6
		}
	case ValueReal:
		return 7
	case ValueText:
		return uint64(len(v.Text))*2 + 13
	default:
		return uint64(len(v.Blob))*2 + 12
	}
}

func serialTypeLen(st uint64) int {
	switch st {
	case 0, 8, 9:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	case 4:
		return 4
	case 5:
		return 6
	case 6, 7:
		return 8
	default:
		if st >= 12 {
			return int((st - 12) / 2)
		}
		return 0
	}
}

// EncodeRecord packs values into the row-record encoding.
func EncodeRecord(vals []Value) []byte {
	header := []byte{}
	body := []byte{}

	for _, v := range vals {
		st := serialTypeOf(v)
		header = putVarint(header, st)
		switch {
		case st >= 1 && st <= 6:
			n := serialTypeLen(st)
			u := uint64(v.Int)
			for i := n - 1; i >= 0; i-- {
				body = append(body, byte(u>>(uint(i)*8)))
			}
		case st == 7:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v.Real))
			body = append(body, buf[:]...)
		case st >= 12 && st%2 == 1:
			body = append(body, v.Text...)
		case st >= 12:
			body = append(body, v.Blob...)
		}
	}

	// the header size includes its own varint
	hsize := len(header) + 1
	if varintLen(uint64(hsize)) > 1 {
		hsize = len(header) + varintLen(uint64(len(header)+2))
	}
	out := putVarint(make([]byte, 0, hsize+len(body)), uint64(hsize))
	out = append(out, header...)
	return append(out, body...)
}

// DecodeRecord unpacks a record produced by EncodeRecord.
func DecodeRecord(data []byte) ([]Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	hsize, n := getVarint(data)
	if n == 0 || int(hsize) > len(data) {
		return nil, fmt.Errorf("invalid record header size")
	}

	types := []uint64{}
	off := n
	for off < int(hsize) {
		st, l := getVarint(data[off:])
		if l == 0 {
			return nil, fmt.Errorf("invalid serial type at offset %d", off)
		}
		types = append(types, st)
		off += l
	}

	out := make([]Value, len(types))
	for i, st := range types {
		l := serialTypeLen(st)
		if off+l > len(data) {
			return nil, fmt.Errorf("truncated record at column %d", i)
		}
		chunk := data[off : off+l]
		switch {
		case st == 0:
			out[i] = NullValue()
		case st == 8:
			out[i] = IntValue(0)
		case st == 9:
			out[i] = IntValue(1)
		case st >= 1 && st <= 6:
			var u uint64
			for _, b := range chunk {
				u = u<<8 | uint64(b)
			}
			shift := uint(64 - 8*l)
			out[i] = IntValue(int64(u<<shift) >> shift)
		case st == 7:
			out[i] = RealValue(math.Float64frombits(binary.BigEndian.Uint64(chunk)))
		case st >= 12 && st%2 == 1:
			out[i] = TextValue(string(chunk))
		case st >= 12:
			b := make([]byte, l)
			copy(b, chunk)
			out[i] = BlobValue(b)
		default:
			return nil, fmt.Errorf("reserved serial type %d", st)
		}
		off += l
	}
	return out, nil
}

// putVarint appends the big endian, 7 bits per byte varint; the ninth byte
// carries a full 8 bits.
func putVarint(buf []byte, v uint64) []byte {
	if v > 0x00ffffffffffffff {
		var tmp [9]byte
		tmp[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			tmp[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return append(buf, tmp[:]...)
	}
	var tmp [9]byte
	n := 0
	for {
		tmp[n] = byte(v&0x7f) | 0x80
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	tmp[0] &= 0x7f
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, tmp[i])
	}
	return buf
}

func getVarint(buf []byte) (uint64, int) {
	var v uint64
	for i := 0; i < 9 && i < len(buf); i++ {
		if i == 8 {
			return v<<8 | uint64(buf[i]), 9
		}
		v = v<<7 | uint64(buf[i]&0x7f)
		if buf[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	return 0, 0
}

func varintLen(v uint64) int {
	return len(putVarint(nil, v))
}
