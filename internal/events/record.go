package events

import (
	"fmt"
	"strconv"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/floats"
	"github.com/roach88/extcall/internal/ir"
)

// Kind is the record kind of an event.
func Kind(ev Event) string {
	switch ev.(type) {
	case Syscall:
		return "syscall"
	case VLoad:
		return "vload"
	case VStore:
		return "vstore"
	case Annot:
		return "annot"
	default:
		return "unknown"
	}
}

// EncodeVal is the record form of an eventval. Floats are stored as the
// hexadecimal image of their bits.
func EncodeVal(v Eventval) ir.IRObject {
	switch v := v.(type) {
	case EVInt:
		return ir.IRObject{"t": ir.IRString("int"), "v": ir.IRInt(v)}
	case EVLong:
		return ir.IRObject{"t": ir.IRString("long"), "v": ir.IRInt(v)}
	case EVFloat:
		bits := floats.ToBits64(float64(v))
		return ir.IRObject{"t": ir.IRString("float"), "bits": ir.IRString(fmt.Sprintf("%016x", bits))}
	case EVSingle:
		bits := floats.ToBits32(float32(v))
		return ir.IRObject{"t": ir.IRString("single"), "bits": ir.IRString(fmt.Sprintf("%08x", bits))}
	case EVPtrGlobal:
		return ir.IRObject{"t": ir.IRString("ptr"), "id": ir.IRString(v.ID), "ofs": ir.IRInt(v.Ofs)}
	default:
		panic(fmt.Sprintf("unknown eventval %T", v))
	}
}

func encodeVals(vs []Eventval) ir.IRArray {
	arr := make(ir.IRArray, len(vs))
	for i, v := range vs {
		arr[i] = EncodeVal(v)
	}
	return arr
}

// Encode is the record form of an event.
func Encode(ev Event) ir.IRObject {
	kind := ir.IRString(Kind(ev))
	switch ev := ev.(type) {
	case Syscall:
		return ir.IRObject{"kind": kind, "name": ir.IRString(ev.Name), "args": encodeVals(ev.Args), "res": EncodeVal(ev.Res)}
	case VLoad:
		return ir.IRObject{"kind": kind, "chunk": ir.IRString(ev.Chunk.String()), "id": ir.IRString(ev.ID), "ofs": ir.IRInt(ev.Ofs), "res": EncodeVal(ev.Res)}
	case VStore:
		return ir.IRObject{"kind": kind, "chunk": ir.IRString(ev.Chunk.String()), "id": ir.IRString(ev.ID), "ofs": ir.IRInt(ev.Ofs), "arg": EncodeVal(ev.Arg)}
	case Annot:
		return ir.IRObject{"kind": kind, "text": ir.IRString(ev.Text), "args": encodeVals(ev.Args)}
	default:
		panic(fmt.Sprintf("unknown event %T", ev))
	}
}

// EncodeTrace encodes every event of t.
func EncodeTrace(t Trace) []ir.IRObject {
	out := make([]ir.IRObject, len(t))
	for i, ev := range t {
		out[i] = Encode(ev)
	}
	return out
}

// DecodeVal is the inverse of EncodeVal.
func DecodeVal(obj ir.IRObject) (Eventval, error) {
	tag, err := obj.String("t")
	if err != nil {
		return nil, err
	}
	switch tag {
	case "int", "long":
		n, err := obj.Int("v")
		if err != nil {
			return nil, err
		}
		if tag == "long" {
			return EVLong(n), nil
		}
		if n != int64(int32(n)) {
			return nil, fmt.Errorf("int eventval out of range: %d", n)
		}
		return EVInt(n), nil
	case "float", "single":
		s, err := obj.String("bits")
		if err != nil {
			return nil, err
		}
		size := 64
		if tag == "single" {
			size = 32
		}
		bits, err := strconv.ParseUint(s, 16, size)
		if err != nil {
			return nil, fmt.Errorf("%s bits %q: %w", tag, s, err)
		}
		if tag == "single" {
			return EVSingle(floats.OfBits32(uint32(bits))), nil
		}
		return EVFloat(floats.OfBits64(bits)), nil
	case "ptr":
		id, err := obj.String("id")
		if err != nil {
			return nil, err
		}
		ofs, err := obj.Int("ofs")
		if err != nil {
			return nil, err
		}
		return EVPtrGlobal{ID: id, Ofs: ofs}, nil
	default:
		return nil, fmt.Errorf("unknown eventval tag %q", tag)
	}
}

func decodeVals(arr ir.IRArray) ([]Eventval, error) {
	out := make([]Eventval, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("args[%d]: expected object, got %T", i, elem)
		}
		v, err := DecodeVal(obj)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func decodeField(obj ir.IRObject, key string) (Eventval, error) {
	sub, err := obj.Object(key)
	if err != nil {
		return nil, err
	}
	return DecodeVal(sub)
}

// Decode is the inverse of Encode.
func Decode(obj ir.IRObject) (Event, error) {
	kind, err := obj.String("kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "syscall":
		name, err := obj.String("name")
		if err != nil {
			return nil, err
		}
		arr, err := obj.Array("args")
		if err != nil {
			return nil, err
		}
		args, err := decodeVals(arr)
		if err != nil {
			return nil, err
		}
		res, err := decodeField(obj, "res")
		if err != nil {
			return nil, err
		}
		return Syscall{Name: name, Args: args, Res: res}, nil
	case "vload", "vstore":
		cs, err := obj.String("chunk")
		if err != nil {
			return nil, err
		}
		chunk, err := ast.ParseChunk(cs)
		if err != nil {
			return nil, err
		}
		id, err := obj.String("id")
		if err != nil {
			return nil, err
		}
		ofs, err := obj.Int("ofs")
		if err != nil {
			return nil, err
		}
		if kind == "vload" {
			res, err := decodeField(obj, "res")
			if err != nil {
				return nil, err
			}
			return VLoad{Chunk: chunk, ID: id, Ofs: ofs, Res: res}, nil
		}
		arg, err := decodeField(obj, "arg")
		if err != nil {
			return nil, err
		}
		return VStore{Chunk: chunk, ID: id, Ofs: ofs, Arg: arg}, nil
	case "annot":
		text, err := obj.String("text")
		if err != nil {
			return nil, err
		}
		arr, err := obj.Array("args")
		if err != nil {
			return nil, err
		}
		args, err := decodeVals(arr)
		if err != nil {
			return nil, err
		}
		return Annot{Text: text, Args: args}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// DecodeTrace decodes a list of records.
func DecodeTrace(objs []ir.IRObject) (Trace, error) {
	var t Trace
	for i, obj := range objs {
		ev, err := Decode(obj)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		t = append(t, ev)
	}
	return t, nil
}
