package packet

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/juju/errors"
)

// EncodeText returns fresh `["name",seq,{...}]\n` line, at most MaxFrame
// bytes. Status message is cut to fit, other kinds exceeding it fail.
// NaN and Inf floats have no text form and are written as zero.
func EncodeText(seq uint16, p Packet) ([]byte, error) {
	b, err := marshalText(seq, p)
	if _, ok := err.(*json.UnsupportedValueError); ok {
		b, err = marshalText(seq, finiteCopy(p))
	}
	if err != nil {
		return nil, errors.Annotatef(err, "kind=%s", p.Kind())
	}
	if st, ok := p.(*Status); ok && len(b) > MaxFrame {
		cut := *st
		for len(b) > MaxFrame && cut.Message != "" {
			cut.Message = trimTail(cut.Message, len(b)-MaxFrame)
			if b, err = marshalText(seq, &cut); err != nil {
				return nil, errors.Annotatef(err, "kind=%s", p.Kind())
			}
		}
	}
	if len(b) > MaxFrame {
		return nil, errors.Annotatef(ErrFrameLength, "kind=%s text=%d", p.Kind(), len(b))
	}
	return b, nil
}

func marshalText(seq uint16, p Packet) ([]byte, error) {
	b, err := json.Marshal([]interface{}{p.Kind().String(), seq, p})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// trimTail drops at least n trailing bytes, keeping utf-8 runes whole.
func trimTail(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	i := len(s) - n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// finiteCopy returns copy of p with NaN and Inf floats zeroed.
func finiteCopy(p Packet) Packet {
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return p
	}
	c := reflect.New(v.Elem().Type())
	c.Elem().Set(v.Elem())
	zeroNonFinite(c.Elem())
	return c.Interface().(Packet)
}

func zeroNonFinite(v reflect.Value) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			v.SetFloat(0)
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			zeroNonFinite(v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				zeroNonFinite(f)
			}
		}
	}
}

func DecodeText(line []byte) (uint16, Packet, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != '[' {
		return 0, nil, ErrNotText
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(line, &parts); err != nil {
		return 0, nil, errors.Annotate(err, "text frame")
	}
	if len(parts) != 3 {
		return 0, nil, errors.NotValidf("text frame elements=%d", len(parts))
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return 0, nil, errors.Annotate(err, "text frame name")
	}
	k, err := KindByName(name)
	if err != nil {
		return 0, nil, err
	}
	var seq uint16
	if err = json.Unmarshal(parts[1], &seq); err != nil {
		return 0, nil, errors.Annotatef(err, "kind=%s seq", k)
	}
	p := New(k)
	if err = json.Unmarshal(parts[2], p); err != nil {
		return seq, nil, errors.Annotatef(err, "kind=%s body", k)
	}
	return seq, p, nil
}
