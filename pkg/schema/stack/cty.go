package stack

import (
	"github.com/zclconf/go-cty/cty"
)

// fromCtyValue converts a cty value into plain Go values. Whole numbers
// become int, everything else numeric becomes float64.
func fromCtyValue(val cty.Value) interface{} {
	if val.IsNull() {
		return nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString()

	case ty == cty.Bool:
		return val.True()

	case ty == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == 0 { // exact
			return int(i)
		}
		f, _ := bf.Float64()
		return f

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]interface{})
		for name, v := range val.AsValueMap() {
			out[name] = fromCtyValue(v)
		}
		return out

	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var out []interface{}
		for _, v := range val.AsValueSlice() {
			out = append(out, fromCtyValue(v))
		}
		return out

	default:
		return nil
	}
}
