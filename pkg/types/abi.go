package types

import "github.com/xplshn/odinc/pkg/ast"

// ABI is the coarse platform classification used to decide how composite
// values cross a procedure boundary.
type ABI int

const (
	ABIUnknown ABI = iota
	ABIWindows
	ABILinux
)

func (a ABI) String() string {
	switch a {
	case ABIWindows:
		return "windows"
	case ABILinux:
		return "linux"
	}
	return "unknown"
}

func intOfSize(size int64) Type {
	switch size {
	case 1:
		return Typ[U8]
	case 2:
		return Typ[U16]
	case 4:
		return Typ[U32]
	case 8:
		return Typ[U64]
	}
	return nil
}

// AbiCompatParam returns the type a parameter of type t is passed as.
// Platforms other than the Windows-like and Linux-like ones pass every type
// through unchanged.
func AbiCompatParam(abi ABI, s Sizes, t Type) Type {
	switch abi {
	case ABIWindows:
		switch Base(t).(type) {
		case *Basic, *Pointer, *Proc, *Slice, *DynamicArray, *Map:
			return t
		case *Array, *Vector, *Record:
			if it := intOfSize(s.SizeOf(t)); it != nil {
				return it
			}
			return NewPointer(t)
		}
	case ABILinux:
		switch Base(t).(type) {
		case *Array, *Vector, *Record:
			if s.SizeOf(t) > 16 {
				return NewPointer(t)
			}
		}
	}
	return t
}

// AbiCompatResult returns the result tuple as the platform returns it.
func AbiCompatResult(abi ABI, s Sizes, results *Tuple) *Tuple {
	if results.Len() == 0 || abi != ABIWindows {
		return results
	}
	var single Type = results
	if results.Len() == 1 {
		single = results.At(0)
		switch Base(single).(type) {
		case *Basic, *Pointer, *Proc:
			return results
		}
	}
	if it := intOfSize(s.SizeOf(single)); it != nil {
		return NewTuple(NewParam("", it))
	}
	return results
}

// ReturnByPointer reports whether results come back through a hidden
// pointer parameter.
func ReturnByPointer(abi ABI, s Sizes, cc ast.CallingConvention, results *Tuple) bool {
	if results == nil || cc == ast.CCOdin {
		return false
	}
	if abi == ABIWindows {
		switch s.SizeOf(results) {
		case 0, 1, 2, 4, 8:
			return false
		}
		return true
	}
	return false
}

// SetAbiTypes fills the ABI-adjusted parameter and result caches of p.
func SetAbiTypes(abi ABI, s Sizes, p *Proc) {
	p.AbiParams = make([]Type, p.ParamCount())
	for i := range p.AbiParams {
		p.AbiParams[i] = AbiCompatParam(abi, s, p.Params.At(i))
	}
	p.AbiResult = AbiCompatResult(abi, s, p.Results)
	p.ReturnByPointer = ReturnByPointer(abi, s, p.CC, p.Results)
}
