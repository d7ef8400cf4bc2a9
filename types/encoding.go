package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// Markers for values JSON cannot express natively.
const (
	fixedMarker = "__fixed__"
	tupleMarker = "__tuple__"
	dictMarker  = "__dict__"
)

// Encode serializes v deterministically. The same value always yields the
// same bytes; dicts keep insertion order.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encoder.Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case NoneType:
		buf.WriteString("null")
	case Bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(x.String())
	case Decimal:
		buf.WriteString(`{"` + fixedMarker + `":`)
		encodeString(buf, x.Text())
		buf.WriteByte('}')
	case Str:
		encodeString(buf, string(x))
	case Tuple:
		buf.WriteString(`{"` + tupleMarker + `":`)
		if err := encodeSeq(buf, x); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *List:
		return encodeSeq(buf, x.Items)
	case *Dict:
		return encodeDict(buf, x)
	default:
		return core.NewError(core.KindType, msgs.MsgUnsupportedValue, v.TypeName())
	}
	return nil
}

func encodeSeq(buf *bytes.Buffer, items []Value) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// plainKeys reports whether d can be written as a JSON object.
func plainKeys(d *Dict) bool {
	for _, k := range d.keys {
		s, ok := k.(Str)
		if !ok || strings.HasPrefix(string(s), "__") {
			return false
		}
	}
	return true
}

func encodeDict(buf *bytes.Buffer, d *Dict) error {
	if !plainKeys(d) {
		buf.WriteString(`{"` + dictMarker + `":[`)
		for i := range d.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeSeq(buf, []Value{d.keys[i], d.vals[i]}); err != nil {
				return err
			}
		}
		buf.WriteString("]}")
		return nil
	}
	buf.WriteByte('{')
	for i := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, string(d.keys[i].(Str)))
		buf.WriteByte(':')
		if err := encodeValue(buf, d.vals[i]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode value: trailing data")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return None, nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		return decodeNumber(string(t))
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return NewList(items...), nil
		case '{':
			return decodeObject(dec)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeNumber(text string) (Value, error) {
	if strings.ContainsAny(text, ".eE") {
		return NewDecimal(text)
	}
	i, ok := ParseInt(text)
	if !ok {
		return nil, fmt.Errorf("invalid number %s", text)
	}
	return i, nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	d := NewDict()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if err := d.Set(Str(key), v); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if d.Len() != 1 {
		return d, nil
	}
	switch key := string(d.keys[0].(Str)); key {
	case fixedMarker:
		s, ok := d.vals[0].(Str)
		if !ok {
			return nil, fmt.Errorf("invalid %s payload", key)
		}
		return NewDecimal(string(s))
	case tupleMarker:
		l, ok := d.vals[0].(*List)
		if !ok {
			return nil, fmt.Errorf("invalid %s payload", key)
		}
		return Tuple(l.Items), nil
	case dictMarker:
		l, ok := d.vals[0].(*List)
		if !ok {
			return nil, fmt.Errorf("invalid %s payload", key)
		}
		out := NewDict()
		for _, entry := range l.Items {
			pair, ok := entry.(*List)
			if !ok || len(pair.Items) != 2 {
				return nil, fmt.Errorf("invalid %s entry", key)
			}
			if err := out.Set(pair.Items[0], pair.Items[1]); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return d, nil
}
