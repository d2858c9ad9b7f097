package witshape

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/rcheap/rc"
)

// Calculator derives rc.ValueType layouts from WIT type definitions,
// following the Canonical ABI sizing rules. Results for named types
// are memoized per *wit.TypeDef.
//
// The returned value types carry layout only; their destructors are
// trivial. Wrap with rc.WithDrop for values that own resources.
type Calculator struct {
	cache map[*wit.TypeDef]rc.ValueType
}

// NewCalculator creates an empty calculator.
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]rc.ValueType),
	}
}

// ValueType returns the value type for t.
func (c *Calculator) ValueType(t wit.Type) rc.ValueType {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return rc.Opaque(witName(t), 1, 1)
	case wit.U16, wit.S16:
		return rc.Opaque(witName(t), 2, 2)
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return rc.Opaque(witName(t), 4, 4)
	case wit.U64, wit.S64, wit.F64:
		return rc.Opaque(witName(t), 8, 8)
	case wit.String:
		return rc.Opaque("string", 8, 4) // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return rc.Opaque("unit", 0, 1)
	}
}

func (c *Calculator) typeDef(t *wit.TypeDef) rc.ValueType {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var vt rc.ValueType

	switch kind := t.Kind.(type) {
	case *wit.Record:
		vt = c.record(kind)
	case *wit.Variant:
		vt = c.variant(kind)
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		vt = rc.Opaque("enum", size, size)
	case *wit.List:
		vt = rc.Opaque("list", 8, 4)
	case *wit.Option:
		vt = c.option(kind)
	case *wit.Result:
		vt = c.result(kind)
	case *wit.Tuple:
		vt = c.tuple(kind)
	case *wit.Flags:
		vt = c.flags(kind)
	case wit.Type:
		vt = c.ValueType(kind)
	default:
		vt = rc.Opaque("unit", 0, 1)
	}

	c.cache[t] = vt
	return vt
}

func (c *Calculator) record(r *wit.Record) rc.ValueType {
	if len(r.Fields) == 0 {
		return rc.Opaque("record", 0, 1)
	}

	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fvt := c.ValueType(field.Type)

		offset = alignTo(offset, fvt.Align())
		if fvt.Align() > maxAlign {
			maxAlign = fvt.Align()
		}
		offset += fvt.Size()
	}

	return rc.Opaque("record", alignTo(offset, maxAlign), maxAlign)
}

func (c *Calculator) variant(v *wit.Variant) rc.ValueType {
	if len(v.Cases) == 0 {
		return rc.Opaque("variant", 0, 1)
	}

	discSize := discriminantSize(len(v.Cases))

	maxAlign := discSize
	maxSize := uint32(0)

	for _, cs := range v.Cases {
		if cs.Type == nil {
			continue
		}
		cvt := c.ValueType(cs.Type)
		if cvt.Align() > maxAlign {
			maxAlign = cvt.Align()
		}
		if cvt.Size() > maxSize {
			maxSize = cvt.Size()
		}
	}

	payloadOffset := alignTo(discSize, maxAlign)
	return rc.Opaque("variant", alignTo(payloadOffset+maxSize, maxAlign), maxAlign)
}

func (c *Calculator) option(o *wit.Option) rc.ValueType {
	inner := c.ValueType(o.Type)

	maxAlign := inner.Align()
	if maxAlign < 1 {
		maxAlign = 1
	}
	payloadOffset := alignTo(1, maxAlign)

	return rc.Opaque("option", alignTo(payloadOffset+inner.Size(), maxAlign), maxAlign)
}

func (c *Calculator) result(r *wit.Result) rc.ValueType {
	maxSize := uint32(0)
	maxAlign := uint32(1)

	if r.OK != nil {
		ok := c.ValueType(r.OK)
		maxSize = ok.Size()
		maxAlign = ok.Align()
	}
	if r.Err != nil {
		e := c.ValueType(r.Err)
		if e.Size() > maxSize {
			maxSize = e.Size()
		}
		if e.Align() > maxAlign {
			maxAlign = e.Align()
		}
	}

	payloadOffset := alignTo(1, maxAlign)
	return rc.Opaque("result", alignTo(payloadOffset+maxSize, maxAlign), maxAlign)
}

func (c *Calculator) tuple(t *wit.Tuple) rc.ValueType {
	if len(t.Types) == 0 {
		return rc.Opaque("tuple", 0, 1)
	}

	maxAlign := uint32(1)
	offset := uint32(0)

	for _, typ := range t.Types {
		evt := c.ValueType(typ)
		offset = alignTo(offset, evt.Align())
		if evt.Align() > maxAlign {
			maxAlign = evt.Align()
		}
		offset += evt.Size()
	}

	return rc.Opaque("tuple", alignTo(offset, maxAlign), maxAlign)
}

func (c *Calculator) flags(f *wit.Flags) rc.ValueType {
	n := len(f.Flags)

	switch {
	case n == 0:
		return rc.Opaque("flags", 0, 1)
	case n <= 8:
		return rc.Opaque("flags", 1, 1)
	case n <= 16:
		return rc.Opaque("flags", 2, 2)
	case n <= 32:
		return rc.Opaque("flags", 4, 4)
	case n <= 64:
		return rc.Opaque("flags", 8, 8)
	default:
		// >64 flags: multiple u32s per Canonical ABI spec.
		numU32s := uint32((n + 31) / 32)
		return rc.Opaque("flags", numU32s*4, 4)
	}
}

func witName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	default:
		return "unknown"
	}
}

func discriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
