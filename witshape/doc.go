// Package witshape derives cell value layouts from WIT type
// definitions.
//
// It maps go.bytecodealliance.org/wit types to rc.ValueType layouts
// using the Canonical ABI sizing rules, so values described by a WIT
// document can live in reference-counted cells:
//
//	calc := witshape.NewCalculator()
//	point := calc.ValueType(pointRecord) // size/align per the ABI
//	cell, err := cells.New(point, writePoint)
//
// Layout math matches the Canonical ABI: records and tuples pack
// fields at their natural alignment, variants and results carry a
// discriminant ahead of the widest payload, lists and strings are
// (ptr, len) fat pointers.
package witshape
