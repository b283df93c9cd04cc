package storage

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/axaubet/bunql/internal/core"
)

func unixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// DecodeValue is the inverse of EncodeValue: it parses one canonical
// value off the front of buf and returns the remaining bytes. Numeric
// values always decode back as KindDecimal regardless of their
// original concrete kind (int32/int64/double/decimal all share tag 1
// and an identical payload shape) since the numeric family compares
// by value, not by concrete Kind (§4.1); callers that need the
// original Kind must track it out of band (the collection's field
// schema, or the query literal being compared against).
func DecodeValue(buf []byte) (core.Value, []byte, error) {
	if len(buf) == 0 {
		return core.Value{}, nil, fmt.Errorf("storage: truncated canonical value")
	}
	tag, rest := buf[0], buf[1:]
	switch tag {
	case 0: // KindNull
		return core.Null(), rest, nil
	case 1: // numeric family
		return decodeOrderedNumber(rest)
	case 2: // string
		s, rest, err := decodeLengthPrefixed(rest)
		return core.String(string(s)), rest, err
	case 3: // document
		return decodeDocument(rest)
	case 4: // array
		return decodeArray(rest)
	case 5: // binary
		b, rest, err := decodeLengthPrefixed(rest)
		return core.Binary(b), rest, err
	case 6: // object id
		if len(rest) < 16 {
			return core.Value{}, nil, fmt.Errorf("storage: truncated object id")
		}
		var id core.ObjectID
		copy(id[:], rest[:16])
		return core.ObjectIDValue(id), rest[16:], nil
	case 7: // bool
		if len(rest) < 1 {
			return core.Value{}, nil, fmt.Errorf("storage: truncated bool")
		}
		return core.Bool(rest[0] != 0), rest[1:], nil
	case 8: // datetime
		if len(rest) < 8 {
			return core.Value{}, nil, fmt.Errorf("storage: truncated datetime")
		}
		u := binary.BigEndian.Uint64(rest[:8])
		n := int64(u ^ (1 << 63))
		return core.DateTime(unixNano(n)), rest[8:], nil
	case 9: // timestamp
		if len(rest) < 8 {
			return core.Value{}, nil, fmt.Errorf("storage: truncated timestamp")
		}
		u := binary.BigEndian.Uint64(rest[:8])
		return core.Timestamp(u), rest[8:], nil
	case 10: // regex
		pat, rest, err := decodeLengthPrefixed(rest)
		if err != nil {
			return core.Value{}, nil, err
		}
		opts, rest, err := decodeLengthPrefixed(rest)
		if err != nil {
			return core.Value{}, nil, err
		}
		return core.RegexValue(string(pat), string(opts)), rest, nil
	}
	return core.Value{}, nil, fmt.Errorf("storage: unknown type tag %d", tag)
}

func decodeLengthPrefixed(buf []byte) ([]byte, []byte, error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return nil, nil, fmt.Errorf("storage: bad length prefix")
	}
	buf = buf[k:]
	if uint64(len(buf)) < n {
		return nil, nil, fmt.Errorf("storage: truncated length-prefixed field")
	}
	return buf[:n], buf[n:], nil
}

func decodeArray(buf []byte) (core.Value, []byte, error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return core.Value{}, nil, fmt.Errorf("storage: bad array count")
	}
	buf = buf[k:]
	items := make([]core.Value, 0, n)
	for i := uint64(0); i < n; i++ {
		enc, rest, err := decodeLengthPrefixed(buf)
		if err != nil {
			return core.Value{}, nil, err
		}
		v, tail, err := DecodeValue(enc)
		if err != nil {
			return core.Value{}, nil, err
		}
		if len(tail) != 0 {
			return core.Value{}, nil, fmt.Errorf("storage: trailing bytes in array element")
		}
		items = append(items, v)
		buf = rest
	}
	return core.Array(items), buf, nil
}

func decodeDocument(buf []byte) (core.Value, []byte, error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return core.Value{}, nil, fmt.Errorf("storage: bad document field count")
	}
	buf = buf[k:]
	d := core.NewDoc()
	for i := uint64(0); i < n; i++ {
		keyBytes, rest, err := decodeLengthPrefixed(buf)
		if err != nil {
			return core.Value{}, nil, err
		}
		enc, rest2, err := decodeLengthPrefixed(rest)
		if err != nil {
			return core.Value{}, nil, err
		}
		v, tail, err := DecodeValue(enc)
		if err != nil {
			return core.Value{}, nil, err
		}
		if len(tail) != 0 {
			return core.Value{}, nil, fmt.Errorf("storage: trailing bytes in document field")
		}
		d.Set(string(keyBytes), v)
		buf = rest2
	}
	return core.DocumentValue(d), buf, nil
}

func decodeOrderedNumber(buf []byte) (core.Value, []byte, error) {
	need := 1 + 2 + digitBytesLen()
	if len(buf) < need {
		return core.Value{}, nil, fmt.Errorf("storage: truncated numeric value")
	}
	tag := buf[0]
	expBytes := append([]byte(nil), buf[1:3]...)
	digitBytes := append([]byte(nil), buf[3:need]...)
	rest := buf[need:]

	switch tag {
	case 1: // zero
		return core.Decimal(new(big.Rat)), rest, nil
	case 2: // positive, no inversion
	case 0: // negative, invert back
		for i := range expBytes {
			expBytes[i] = ^expBytes[i]
		}
		for i := range digitBytes {
			digitBytes[i] = ^digitBytes[i]
		}
	default:
		return core.Value{}, nil, fmt.Errorf("storage: bad numeric sign tag %d", tag)
	}

	expBiased := binary.BigEndian.Uint16(expBytes)
	exp := int(expBiased) - expBias
	digits := new(big.Int).SetBytes(digitBytes)

	r := new(big.Rat).SetInt(digits)
	r.Mul(r, pow10Rat(exp-numDigits))
	if tag == 0 {
		r.Neg(r)
	}
	return core.Decimal(r), rest, nil
}
