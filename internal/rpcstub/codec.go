package rpcstub

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Envelope field names.
const (
	dataField  = "data"
	errorField = "error"
)

// Request is a call's arguments keyed by input field name.
type Request map[string]any

// Response is a decoded response envelope. Exactly one of Data and Error
// is meaningful: Error is non-empty when the server reported a failure.
//
// Data holds []byte, string, bool, int64, uint64, float64, an enum value
// name, []any for repeated fields, or map[string]any for messages.
type Response struct {
	Data  any
	Error string
}

// Failed reports whether the server reported an error.
func (r *Response) Failed() bool {
	return r.Error != ""
}

// encodeRequest builds the input message of md from req.
func encodeRequest(md protoreflect.MessageDescriptor, req Request) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(md)
	if err := fillMessage(msg, req); err != nil {
		return nil, err
	}
	return msg, nil
}

func fillMessage(msg protoreflect.Message, fields map[string]any) error {
	desc := msg.Descriptor()
	for name, v := range fields {
		fd := desc.Fields().ByName(protoreflect.Name(name))
		if fd == nil {
			fd = desc.Fields().ByJSONName(name)
		}
		if fd == nil {
			return fmt.Errorf("%w: unknown field %q in %s", ErrEncode, name, desc.FullName())
		}
		if v == nil {
			continue
		}
		if err := setField(msg, fd, v); err != nil {
			return err
		}
	}
	return nil
}

func setField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v any) error {
	switch {
	case fd.IsMap():
		return fmt.Errorf("%w: map field %s is not supported", ErrEncode, fd.FullName())
	case fd.IsList():
		items, err := toList(v)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrEncode, fd.FullName(), err)
		}
		list := msg.Mutable(fd).List()
		for _, item := range items {
			if fd.Kind() == protoreflect.MessageKind {
				nested, err := messageValue(list.NewElement().Message(), fd, item)
				if err != nil {
					return err
				}
				list.Append(nested)
				continue
			}
			val, err := scalarValue(fd, item)
			if err != nil {
				return err
			}
			list.Append(val)
		}
		return nil
	case fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind:
		val, err := messageValue(msg.NewField(fd).Message(), fd, v)
		if err != nil {
			return err
		}
		msg.Set(fd, val)
		return nil
	default:
		val, err := scalarValue(fd, v)
		if err != nil {
			return err
		}
		msg.Set(fd, val)
		return nil
	}
}

func messageValue(m protoreflect.Message, fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return protoreflect.Value{}, fmt.Errorf("%w: field %s wants an object, got %T", ErrEncode, fd.FullName(), v)
	}
	if err := fillMessage(m, fields); err != nil {
		return protoreflect.Value{}, err
	}
	return protoreflect.ValueOfMessage(m), nil
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	case [][]byte:
		out := make([]any, len(l))
		for i, b := range l {
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want a list, got %T", v)
	}
}

// scalarValue converts v to the value of a singular, non-message field.
// Strings and byte slices convert into each other.
func scalarValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	bad := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, fmt.Errorf("%w: field %s (%s) cannot hold %T", ErrEncode, fd.FullName(), fd.Kind(), v)
	}

	switch fd.Kind() {
	case protoreflect.StringKind:
		switch s := v.(type) {
		case string:
			return protoreflect.ValueOfString(s), nil
		case []byte:
			return protoreflect.ValueOfString(string(s)), nil
		}
		return bad()

	case protoreflect.BytesKind:
		switch b := v.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(b), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(b)), nil
		}
		return bad()

	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
		return bad()

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return bad()
		}
		return protoreflect.ValueOfInt32(int32(n)), nil

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, ok := toInt64(v)
		if !ok {
			return bad()
		}
		return protoreflect.ValueOfInt64(n), nil

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, ok := toInt64(v)
		if !ok || n < 0 || n > math.MaxUint32 {
			return bad()
		}
		return protoreflect.ValueOfUint32(uint32(n)), nil

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if u, ok := v.(uint64); ok {
			return protoreflect.ValueOfUint64(u), nil
		}
		n, ok := toInt64(v)
		if !ok || n < 0 {
			return bad()
		}
		return protoreflect.ValueOfUint64(uint64(n)), nil

	case protoreflect.FloatKind, protoreflect.DoubleKind:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		default:
			n, ok := toInt64(v)
			if !ok {
				return bad()
			}
			f = float64(n)
		}
		if fd.Kind() == protoreflect.FloatKind {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
		return protoreflect.ValueOfFloat64(f), nil

	case protoreflect.EnumKind:
		if s, ok := v.(string); ok {
			ev := fd.Enum().Values().ByName(protoreflect.Name(s))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf("%w: field %s has no enum value %q", ErrEncode, fd.FullName(), s)
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		}
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return bad()
		}
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
	}
	return bad()
}

// toInt64 accepts Go integer types and integral float64 values, which is
// what JSON decoding produces.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// decodeResponse applies the data/error envelope to msg. A data field
// without presence (repeated or plain proto3 scalar) counts as present
// unless the error field is set and data holds its default.
func decodeResponse(msg protoreflect.Message) (*Response, error) {
	desc := msg.Descriptor()
	dataFd := desc.Fields().ByName(dataField)
	errFd := desc.Fields().ByName(errorField)
	if dataFd == nil || errFd == nil {
		return nil, fmt.Errorf("%w: %s lacks %q or %q field", ErrEnvelope, desc.FullName(), dataField, errorField)
	}
	if errFd.Kind() != protoreflect.StringKind || errFd.IsList() {
		return nil, fmt.Errorf("%w: %s.%s is not a string", ErrEnvelope, desc.FullName(), errorField)
	}

	errSet := msg.Has(errFd)
	dataSet := msg.Has(dataFd)

	switch {
	case errSet && dataSet:
		return nil, fmt.Errorf("%w: %s carries both data and error", ErrEnvelope, desc.FullName())
	case errSet:
		return &Response{Error: msg.Get(errFd).String()}, nil
	case !dataSet && dataFd.HasPresence():
		return nil, fmt.Errorf("%w: %s carries neither data nor error", ErrEnvelope, desc.FullName())
	}
	return &Response{Data: fieldValue(dataFd, msg.Get(dataFd))}, nil
}

func fieldValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch {
	case fd.IsList():
		list := v.List()
		out := make([]any, list.Len())
		for i := range out {
			out[i] = singularValue(fd, list.Get(i))
		}
		return out
	case fd.IsMap():
		out := make(map[string]any, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = singularValue(fd.MapValue(), mv)
			return true
		})
		return out
	default:
		return singularValue(fd, v)
	}
}

func singularValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return append([]byte(nil), v.Bytes()...)
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int64(v.Enum())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return messageMap(v.Message())
	}
	return v.Interface()
}

// messageMap converts m to a map keyed by field name. Fields with presence
// are included only when set.
func messageMap(m protoreflect.Message) map[string]any {
	fields := m.Descriptor().Fields()
	out := make(map[string]any, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.HasPresence() && !m.Has(fd) {
			continue
		}
		out[string(fd.Name())] = fieldValue(fd, m.Get(fd))
	}
	return out
}
