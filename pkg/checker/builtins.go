package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
	"github.com/xplshn/odinc/pkg/util"
)

// Builtins whose first argument is checked by the builtin itself, usually
// because it may be a type.
var builtinTakesType = map[BuiltinID]bool{
	BuiltinNew:       true,
	BuiltinMake:      true,
	BuiltinSizeOf:    true,
	BuiltinAlignOf:   true,
	BuiltinOffsetOf:  true,
	BuiltinTypeInfo:  true,
	BuiltinTransmute: true,
}

func untypedInt(o *Operand, v int64) {
	o.Mode = ModeConstant
	o.Value = exact.MakeInt64(v)
	o.Type = types.Typ[types.UntypedInteger]
}

func basicKind(t types.Type) types.BasicKind {
	if b, ok := types.Core(t).(*types.Basic); ok {
		return b.Kind
	}
	return types.Invalid
}

func isOrderedValue(t types.Type) bool {
	return types.IsOrdered(t) && (types.IsNumeric(t) || types.IsString(t))
}

// checkBuiltin checks a call of builtin id. It reports false after
// diagnosing a bad call.
func (c *Checker) checkBuiltin(o *Operand, call *ast.Node, d ast.CallExprNode, id BuiltinID) bool {
	bp := builtinProcs[id]
	args := d.Args

	err := ""
	switch {
	case len(args) < bp.argCount:
		err = "Too few"
	case len(args) > bp.argCount && !bp.variadic:
		err = "Too many"
	}
	if err != "" {
		c.errorf(call, "%s arguments for `%s`, expected %d, got %d", err, exprString(d.Proc), bp.argCount, len(args))
		return false
	}
	if d.Ellipsis.Type == token.Dots && id != BuiltinAppend {
		c.errorAt(d.Ellipsis, "Invalid use of `..` with built-in procedure `%s`", bp.name)
		return false
	}

	if (id == BuiltinTypeInfo || id == BuiltinTypeInfoOfVal) && !c.cfg.IsFeatureEnabled(config.FeatTypeInfo) {
		c.errorf(call, "`%s` is disabled", bp.name)
		return false
	}

	if !builtinTakesType[id] {
		c.checkMultiExpr(o, args[0])
		if o.Mode == ModeInvalid {
			return false
		}
	}

	switch id {
	case BuiltinLen, BuiltinCap:
		return c.builtinLen(o, call, id)

	case BuiltinNew:
		t, ok := c.builtinTypeArg(args[0], bp.name)
		if !ok {
			return false
		}
		o.Mode = ModeValue
		o.Type = types.NewPointer(t)

	case BuiltinMake:
		return c.builtinMake(o, call, args)

	case BuiltinFree:
		t := o.Type
		if !types.IsPointer(t) && !types.IsSlice(t) && !types.IsString(t) && !types.IsDynamicArray(t) && !types.IsMap(t) {
			c.errorf(o.Expr, "Invalid type for `free`, got `%s`", t)
			return false
		}
		o.Mode = ModeNoValue

	case BuiltinReserve:
		t := types.Deref(o.Type)
		if !types.IsDynamicArray(t) && !types.IsMap(t) {
			c.errorf(o.Expr, "Expected a dynamic array or dynamic map, got `%s`", o.Type)
			return false
		}
		if o.Mode != ModeVariable && !types.IsPointer(o.Type) {
			c.errorf(o.Expr, "`reserve` can only operate on addressable values")
			return false
		}
		var capacity Operand
		c.checkExpr(&capacity, args[1])
		if capacity.Mode == ModeInvalid {
			return false
		}
		if !types.IsInteger(capacity.Type) {
			c.errorf(o.Expr, "`reserve` capacities must be an integer")
			return false
		}
		c.convertToTyped(&capacity, types.Typ[types.Int])
		o.Mode = ModeNoValue

	case BuiltinClear:
		t := types.Deref(o.Type)
		if !types.IsDynamicArray(t) && !types.IsMap(t) && !types.IsSlice(t) {
			c.errorf(o.Expr, "Invalid type for `clear`, got `%s`", t)
			return false
		}
		o.Mode = ModeNoValue

	case BuiltinAppend:
		return c.builtinAppend(o, call, d)

	case BuiltinDelete:
		m, ok := types.Base(o.Type).(*types.Map)
		if !ok {
			c.errorf(o.Expr, "Expected a map, got `%s`", o.Type)
			return false
		}
		var key Operand
		c.checkExpr(&key, args[1])
		if key.Mode == ModeInvalid {
			return false
		}
		if !c.assignable(&key, m.Key) {
			c.errorf(o.Expr, "Expected a key of type `%s`, got `%s`", m.Key, key.Type)
			return false
		}
		c.convertToTyped(&key, m.Key)
		o.Mode = ModeNoValue

	case BuiltinSizeOf, BuiltinAlignOf:
		t := c.checkType(args[0])
		if types.IsInvalid(t) {
			c.errorf(args[0], "Expected a type for `%s`", bp.name)
			return false
		}
		if id == BuiltinSizeOf {
			untypedInt(o, c.sizes.SizeOf(t))
		} else {
			untypedInt(o, c.sizes.AlignOf(t))
		}

	case BuiltinSizeOfVal, BuiltinAlignOfVal:
		c.checkAssignment(o, nil, "argument of `"+bp.name+"`")
		if o.Mode == ModeInvalid {
			return false
		}
		if id == BuiltinSizeOfVal {
			untypedInt(o, c.sizes.SizeOf(o.Type))
		} else {
			untypedInt(o, c.sizes.AlignOf(o.Type))
		}

	case BuiltinOffsetOf:
		return c.builtinOffsetOf(o, args)

	case BuiltinOffsetOfVal:
		return c.builtinOffsetOfVal(o, args[0])

	case BuiltinTypeOfVal:
		c.checkAssignment(o, nil, "argument of `type_of_val`")
		if o.Mode == ModeInvalid || o.Mode == ModeBuiltin {
			return false
		}
		if types.IsInvalid(o.Type) {
			c.errorf(o.Expr, "Invalid argument to `type_of_val`")
			return false
		}
		o.Mode = ModeType

	case BuiltinTypeInfo:
		if c.ctx.scope == c.universe {
			util.Fatalf(call.Tok, "`type_info` cannot be used within the universe scope")
		}
		t := c.checkType(args[0])
		if types.IsInvalid(t) {
			c.errorf(args[0], "Invalid argument to `type_info`")
			return false
		}
		c.addTypeInfoType(t)
		o.Mode = ModeValue
		o.Type = types.NewPointer(types.TypeInfo)

	case BuiltinTypeInfoOfVal:
		c.checkAssignment(o, nil, "argument of `type_info_of_val`")
		if o.Mode == ModeInvalid || o.Mode == ModeBuiltin {
			return false
		}
		c.addTypeInfoType(o.Type)
		o.Mode = ModeValue
		o.Type = types.NewPointer(types.TypeInfo)

	case BuiltinCompileAssert:
		if !types.IsBoolean(o.Type) || o.Mode != ModeConstant {
			c.errorf(call, "`%s` is not a constant boolean", exprString(args[0]))
			return false
		}
		if !o.Value.Bool() {
			c.errorf(call, "Compile time assertion: `%s`", exprString(args[0]))
		}
		o.Mode = ModeConstant
		o.Type = types.Typ[types.UntypedBool]

	case BuiltinAssert:
		if !types.IsBoolean(o.Type) {
			c.errorf(call, "`%s` is not a boolean", exprString(args[0]))
			return false
		}
		c.convertToTyped(o, types.Typ[types.Bool])
		o.Mode = ModeValue
		o.Type = types.Typ[types.Bool]

	case BuiltinPanic:
		if !types.IsString(o.Type) {
			c.errorf(call, "`%s` is not a string", exprString(args[0]))
			return false
		}
		c.convertToTyped(o, types.Typ[types.String])
		o.Mode = ModeNoValue

	case BuiltinCopy:
		dst, _ := types.Base(o.Type).(*types.Slice)
		var src Operand
		c.checkExpr(&src, args[1])
		if src.Mode == ModeInvalid {
			return false
		}
		s, _ := types.Base(src.Type).(*types.Slice)
		if dst == nil || s == nil {
			c.errorf(call, "`copy` only expects slices as arguments")
			return false
		}
		if !types.Identical(dst.Elem, s.Elem) {
			c.errorf(call, "Arguments to `copy`, %s, %s, have different elem types: %s vs %s",
				exprString(args[0]), exprString(args[1]), dst.Elem, s.Elem)
			return false
		}
		o.Mode = ModeValue
		o.Type = types.Typ[types.Int]

	case BuiltinSwizzle:
		return c.builtinSwizzle(o, call, args)

	case BuiltinComplex:
		return c.builtinComplex(o, call, args)

	case BuiltinReal, BuiltinImag:
		return c.builtinRealImag(o, call, id)

	case BuiltinConj:
		if !types.IsComplex(o.Type) {
			c.errorf(call, "Expected a complex or quaternion, got `%s`", o.Type)
			return false
		}
		if o.Mode == ModeConstant {
			v := exact.ToComplex(o.Value).Complex()
			o.Value = exact.MakeComplex(complex(real(v), -imag(v)))
		} else {
			o.Mode = ModeValue
		}

	case BuiltinSlicePtr:
		p, ok := types.Base(o.Type).(*types.Pointer)
		if !ok {
			c.errorf(call, "Expected a pointer to `slice_ptr`, got `%s`", o.Type)
			return false
		}
		if types.IsRawptr(o.Type) {
			c.errorf(call, "`rawptr` cannot have pointer arithmetic")
			return false
		}
		if len(args) > 3 {
			c.errorf(args[0], "`slice_ptr` expects 2 or 3 arguments, found %d", len(args))
		} else {
			c.checkSizeArgs(args[1:], "slice_ptr")
		}
		o.Mode = ModeValue
		o.Type = types.NewSlice(p.Elem)

	case BuiltinSliceToBytes:
		if !types.IsSlice(o.Type) {
			c.errorf(call, "Expected a slice type, got `%s`", o.Type)
			return false
		}
		o.Mode = ModeValue
		o.Type = types.NewSlice(types.Typ[types.U8])

	case BuiltinMin, BuiltinMax, BuiltinClamp:
		return c.builtinOrdered(o, call, args, id)

	case BuiltinAbs:
		if !types.IsNumeric(o.Type) && !types.IsVector(o.Type) {
			c.errorf(call, "Expected a numeric type to `abs`, got `%s`", o.Type)
			return false
		}
		if o.Mode == ModeConstant {
			o.Value = exact.Abs(o.Value)
		} else {
			o.Mode = ModeValue
		}
		if types.IsComplex(o.Type) {
			o.Type = complexElem(o.Type)
		}

	case BuiltinTransmute:
		t, ok := c.builtinTypeArg(args[0], bp.name)
		if !ok {
			return false
		}
		c.checkExpr(o, args[1])
		if o.Mode == ModeInvalid {
			return false
		}
		c.checkTransmute(o, t)
		return o.Mode != ModeInvalid

	default:
		util.Fatalf(call.Tok, "unhandled builtin procedure %s", id)
	}
	return true
}

func (c *Checker) builtinTypeArg(n *ast.Node, name string) (types.Type, bool) {
	var op Operand
	c.checkExprOrType(&op, n)
	if op.Mode != ModeType || types.IsInvalid(op.Type) {
		c.errorf(n, "Expected a type for `%s`", name)
		return nil, false
	}
	return op.Type, true
}

// checkSizeArgs checks length and capacity arguments, diagnosing constant
// pairs given in the wrong order.
func (c *Checker) checkSizeArgs(args []*ast.Node, name string) {
	var sizes []int64
	for _, a := range args {
		if v, ok := c.checkIndexValue(false, a, -1); ok && v >= 0 {
			sizes = append(sizes, v)
		}
	}
	if len(sizes) == 2 && sizes[0] > sizes[1] {
		c.errorf(args[0], "`%s` count and capacity are swapped", name)
	}
}

func (c *Checker) builtinLen(o *Operand, call *ast.Node, id BuiltinID) bool {
	t := types.Deref(o.Type)
	mode := ModeInvalid
	switch b := types.Base(t).(type) {
	case *types.Basic:
		if types.IsString(b) && id == BuiltinLen {
			if o.Mode == ModeConstant {
				untypedInt(o, int64(len(o.Value.Str())))
				return true
			}
			mode = ModeValue
		}
	case *types.Array:
		untypedInt(o, b.Count)
		return true
	case *types.Vector:
		if id == BuiltinLen {
			untypedInt(o, b.Count)
			return true
		}
	case *types.Slice, *types.DynamicArray, *types.Map:
		mode = ModeValue
	}
	if mode == ModeInvalid {
		c.errorf(call, "`%s` is not supported for `%s`", id, o.Type)
		return false
	}
	o.Mode = mode
	o.Value = exact.Value{}
	o.Type = types.Typ[types.Int]
	return true
}

func (c *Checker) builtinMake(o *Operand, call *ast.Node, args []*ast.Node) bool {
	t, ok := c.builtinTypeArg(args[0], "make")
	if !ok {
		return false
	}
	var minArgs, maxArgs int
	switch {
	case types.IsSlice(t):
		minArgs, maxArgs = 2, 3
	case types.IsMap(t):
		minArgs, maxArgs = 1, 2
	case types.IsDynamicArray(t):
		minArgs, maxArgs = 1, 3
	default:
		c.errorf(call, "Cannot `make` %s; type must be a slice, map, or dynamic array", t)
		return false
	}
	if len(args) < minArgs || len(args) > maxArgs {
		c.errorf(args[0], "`make` expects %d or %d argument, found %d", minArgs, maxArgs, len(args))
		return false
	}
	c.checkSizeArgs(args[1:], "make")
	o.Mode = ModeValue
	o.Type = t
	return true
}

func (c *Checker) builtinAppend(o *Operand, call *ast.Node, d ast.CallExprNode) bool {
	t := types.Base(types.Deref(o.Type))
	var elem types.Type
	switch b := t.(type) {
	case *types.DynamicArray:
		elem = b.Elem
	case *types.Slice:
		elem = b.Elem
	default:
		c.errorf(o.Expr, "Expected a slice or dynamic array, got `%s`", o.Type)
		return false
	}
	if o.Mode != ModeVariable && !types.IsPointer(o.Type) {
		c.errorf(o.Expr, "`append` can only operate on addressable values")
		return false
	}

	pt := &types.Proc{
		Params:   types.NewTuple(types.NewParam("", o.Type), types.NewParam("", types.NewSlice(elem))),
		Variadic: true,
	}
	rest, _ := c.unpackArguments(-1, d.Args[1:], false)
	operands := append([]Operand{*o}, rest...)
	if _, ok := c.callArguments(call, d, pt, operands, true); !ok {
		return false
	}
	o.Mode = ModeValue
	o.Type = types.Typ[types.Int]
	return true
}

func (c *Checker) builtinOffsetOf(o *Operand, args []*ast.Node) bool {
	bt := c.checkType(args[0])
	if types.IsInvalid(bt) {
		c.errorf(args[0], "Expected a type for `offset_of`")
		return false
	}
	field := ast.Unparen(args[1])
	if field == nil || field.Type != ast.Ident {
		c.errorf(args[1], "Expected an identifier for field argument")
		return false
	}
	if types.IsArray(bt) || types.IsVector(bt) {
		c.errorf(field, "Invalid type for `offset_of`")
		return false
	}
	name := ast.IdentName(field)
	sel := types.LookupField(bt, name, false)
	if !sel.Found() {
		c.errorf(args[0], "`%s` has no field named `%s`", bt, name)
		return false
	}
	if sel.Indirect {
		c.errorf(args[0], "Field `%s` is embedded via a pointer in `%s`", name, bt)
		return false
	}
	c.recordUse(field, sel.Entity)
	untypedInt(o, c.sizes.OffsetOfSelection(bt, sel))
	return true
}

func (c *Checker) builtinOffsetOfVal(o *Operand, arg *ast.Node) bool {
	arg = ast.Unparen(arg)
	s, ok := arg.Data.(ast.SelectorExprNode)
	if !ok || ast.Unparen(s.Selector).Type != ast.Ident {
		c.errorf(arg, "`%s` is not a selector expression", exprString(arg))
		return false
	}
	c.checkExpr(o, s.Expr)
	if o.Mode == ModeInvalid {
		return false
	}
	t := types.Deref(o.Type)
	if types.IsArray(t) || types.IsVector(t) {
		c.errorf(arg, "Invalid type for `offset_of_val`")
		return false
	}
	field := ast.Unparen(s.Selector)
	name := ast.IdentName(field)
	sel := types.LookupField(t, name, false)
	if !sel.Found() {
		c.errorf(arg, "`%s` has no field named `%s`", t, name)
		return false
	}
	if sel.Indirect {
		c.errorf(arg, "Field `%s` is embedded via a pointer in `%s`", name, t)
		return false
	}
	c.recordUse(field, sel.Entity)
	untypedInt(o, c.sizes.OffsetOfSelection(t, sel))
	return true
}

func (c *Checker) builtinSwizzle(o *Operand, call *ast.Node, args []*ast.Node) bool {
	v, ok := types.Base(o.Type).(*types.Vector)
	if !ok {
		c.errorf(call, "You can only `swizzle` a vector, got `%s`", o.Type)
		return false
	}
	count := int64(0)
	for _, arg := range args[1:] {
		var idx Operand
		c.checkExpr(&idx, arg)
		if idx.Mode == ModeInvalid {
			return false
		}
		if !types.IsInteger(idx.Type) || idx.Mode != ModeConstant {
			c.errorf(arg, "Indices to `swizzle` must be constant integers")
			return false
		}
		i, _ := idx.Value.Int64()
		if i < 0 {
			c.errorf(arg, "Negative `swizzle` index")
			return false
		}
		if i >= v.Count {
			c.errorf(arg, "`swizzle` index exceeds vector length")
			return false
		}
		c.convertToTyped(&idx, types.Typ[types.Int])
		count++
	}
	if count > v.Count {
		c.errorf(call, "Too many `swizzle` indices, %d > %d", count, v.Count)
		return false
	}
	o.Mode = ModeValue
	o.Type = types.NewVector(v.Elem, count)
	return true
}

func (c *Checker) builtinComplex(o *Operand, call *ast.Node, args []*ast.Node) bool {
	x := *o
	var y Operand
	c.checkExpr(&y, args[1])
	if y.Mode == ModeInvalid {
		return false
	}

	c.convertToTyped(&x, y.Type)
	if x.Mode == ModeInvalid {
		return false
	}
	c.convertToTyped(&y, x.Type)
	if y.Mode == ModeInvalid {
		return false
	}
	if x.Mode == ModeConstant && y.Mode == ModeConstant {
		if types.IsNumeric(x.Type) && exact.Imag(x.Value).IsZero() {
			x.Type = types.Typ[types.UntypedFloat]
		}
		if types.IsNumeric(y.Type) && exact.Imag(y.Value).IsZero() {
			y.Type = types.Typ[types.UntypedFloat]
		}
	}

	if !types.Identical(x.Type, y.Type) {
		c.errorf(call, "Mismatched types to `complex`, `%s` vs `%s`", x.Type, y.Type)
		return false
	}
	if !types.IsFloat(x.Type) {
		c.errorf(call, "Arguments have type `%s`, expected a floating point", x.Type)
		return false
	}

	if x.Mode == ModeConstant && y.Mode == ModeConstant {
		re := exact.ToFloat(exact.Real(x.Value)).Float64()
		im := exact.ToFloat(exact.Real(y.Value)).Float64()
		o.Mode = ModeConstant
		o.Value = exact.MakeComplex(complex(re, im))
	} else {
		o.Mode = ModeValue
		o.Value = exact.Value{}
	}

	switch basicKind(x.Type) {
	case types.F32:
		o.Type = types.Typ[types.Complex64]
	case types.F64:
		o.Type = types.Typ[types.Complex128]
	default:
		o.Type = types.Typ[types.UntypedComplex]
	}
	return true
}

func complexElem(t types.Type) types.Type {
	switch basicKind(t) {
	case types.Complex64:
		return types.Typ[types.F32]
	case types.Complex128:
		return types.Typ[types.F64]
	}
	return types.Typ[types.UntypedFloat]
}

func (c *Checker) builtinRealImag(o *Operand, call *ast.Node, id BuiltinID) bool {
	if types.IsUntyped(o.Type) {
		if o.Mode == ModeConstant {
			if types.IsNumeric(o.Type) {
				o.Type = types.Typ[types.UntypedComplex]
			}
		} else {
			c.convertToTyped(o, types.Typ[types.Complex128])
			if o.Mode == ModeInvalid {
				return false
			}
		}
	}
	if !types.IsComplex(o.Type) {
		c.errorf(call, "Argument has type `%s`, expected a complex type", o.Type)
		return false
	}

	if o.Mode == ModeConstant {
		if id == BuiltinReal {
			o.Value = exact.Real(exact.ToComplex(o.Value))
		} else {
			o.Value = exact.Imag(exact.ToComplex(o.Value))
		}
	} else {
		o.Mode = ModeValue
	}
	o.Type = complexElem(o.Type)
	return true
}

// builtinOrdered handles min, max and clamp. Constant arguments fold to
// the chosen constant.
func (c *Checker) builtinOrdered(o *Operand, call *ast.Node, args []*ast.Node, id BuiltinID) bool {
	name := id.String()
	ops := make([]Operand, len(args))
	ops[0] = *o
	for i := range ops {
		if i > 0 {
			c.checkExpr(&ops[i], args[i])
			if ops[i].Mode == ModeInvalid {
				return false
			}
		}
		if !isOrderedValue(ops[i].Type) {
			c.errorf(call, "Expected a ordered numeric or string type to `%s`, got `%s`", name, ops[i].Type)
			return false
		}
	}

	allConst := true
	for _, op := range ops {
		allConst = allConst && op.Mode == ModeConstant
	}
	if allConst {
		pick := 0
		switch id {
		case BuiltinMin:
			if !exact.Compare(token.Lt, ops[0].Value, ops[1].Value) {
				pick = 1
			}
		case BuiltinMax:
			if !exact.Compare(token.Gt, ops[0].Value, ops[1].Value) {
				pick = 1
			}
		case BuiltinClamp:
			switch {
			case exact.Compare(token.Lt, ops[0].Value, ops[1].Value):
				pick = 1
			case exact.Compare(token.Gt, ops[0].Value, ops[2].Value):
				pick = 2
			}
		}
		o.Mode = ModeConstant
		o.Value = ops[pick].Value
		o.Type = ops[pick].Type
		return true
	}

	for i := range ops {
		for j := range ops {
			if i == j {
				continue
			}
			c.convertToTyped(&ops[i], ops[j].Type)
			if ops[i].Mode == ModeInvalid {
				return false
			}
		}
	}
	for _, op := range ops[1:] {
		if !types.Identical(ops[0].Type, op.Type) {
			c.errorf(call, "Mismatched types to `%s`, `%s` vs `%s`", name, ops[0].Type, op.Type)
			return false
		}
	}
	o.Mode = ModeValue
	o.Value = exact.Value{}
	o.Type = ops[0].Type
	return true
}
