// Package codec decodes and encodes CIP elementary and constructed data types
// from self-describing type descriptors.
package codec

import "encoding/binary"

// PutUint16 writes a uint16 to dst using the provided byte order.
func PutUint16(order binary.ByteOrder, dst []byte, value uint16) {
	order.PutUint16(dst, value)
}

// PutUint32 writes a uint32 to dst using the provided byte order.
func PutUint32(order binary.ByteOrder, dst []byte, value uint32) {
	order.PutUint32(dst, value)
}

// PutUint64 writes a uint64 to dst using the provided byte order.
func PutUint64(order binary.ByteOrder, dst []byte, value uint64) {
	order.PutUint64(dst, value)
}

// AppendUint16 appends a uint16 to dst using the provided byte order.
func AppendUint16(order binary.ByteOrder, dst []byte, value uint16) []byte {
	var buf [2]byte
	order.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a uint32 to dst using the provided byte order.
func AppendUint32(order binary.ByteOrder, dst []byte, value uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint64 appends a uint64 to dst using the provided byte order.
func AppendUint64(order binary.ByteOrder, dst []byte, value uint64) []byte {
	var buf [8]byte
	order.PutUint64(buf[:], value)
	return append(dst, buf[:]...)
}

var le = binary.LittleEndian

// ToInt converts any integer value produced by Decode to an int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case uint:
		return int(n), true
	default:
		return 0, false
	}
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	case float32, float64:
		return 0, false
	}
	i, ok := ToInt(v)
	return uint64(i), ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	i, ok := ToInt(v)
	return float64(i), ok
}
