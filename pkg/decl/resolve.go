package decl

import (
	"fmt"

	"github.com/covenant-lang/covenant/pkg/types"
)

// Resolver converts TypeExpr nodes into the canonical types.Type model.
// Named definitions are resolved against the contract's Types list and
// memoized so repeated references share one Type value.
type Resolver struct {
	defs  map[string]TypeExpr
	named map[string]types.Type
}

// NewResolver builds a resolver over the contract's type definitions.
func NewResolver(c *Contract) *Resolver {
	r := &Resolver{
		defs:  make(map[string]TypeExpr, len(c.Types)),
		named: make(map[string]types.Type, len(c.Types)),
	}
	for _, td := range c.Types {
		r.defs[td.Name] = td.Type
	}
	return r
}

// Resolve converts te to a types.Type. An unresolvable expression means
// the front end handed over a broken tree, which is a compiler defect,
// so the error is fatal to the build.
func (r *Resolver) Resolve(te TypeExpr) (types.Type, error) {
	switch te.Kind {
	case TypeBool:
		return types.MakeBasic(types.Bool), nil
	case TypeU8:
		return types.MakeBasic(types.U8), nil
	case TypeU64:
		return types.MakeBasic(types.U64), nil
	case TypeU128:
		return types.MakeBasic(types.U128), nil
	case TypeU256:
		return types.MakeBasic(types.U256), nil
	case TypeAddress:
		return types.MakeBasic(types.Address), nil

	case TypeNamed:
		if t, ok := r.named[te.Name]; ok {
			return t, nil
		}
		def, ok := r.defs[te.Name]
		if !ok {
			return nil, fmt.Errorf("unresolved type name %q", te.Name)
		}
		t, err := r.Resolve(def)
		if err != nil {
			return nil, err
		}
		r.named[te.Name] = t
		return t, nil

	case TypeStruct:
		st := &types.Struct{Name: te.Name, Fields: make([]types.Field, len(te.Fields))}
		for i, f := range te.Fields {
			ft, err := r.Resolve(f.Type)
			if err != nil {
				return nil, err
			}
			st.Fields[i] = types.Field{Name: f.Name, Type: ft}
		}
		return st, nil

	case TypeEnum:
		en := &types.Enum{Name: te.Name, Variants: make([]types.Variant, len(te.Variants))}
		for i, v := range te.Variants {
			payload := make([]types.Type, len(v.Payload))
			for j, p := range v.Payload {
				pt, err := r.Resolve(p)
				if err != nil {
					return nil, err
				}
				payload[j] = pt
			}
			en.Variants[i] = types.Variant{Name: v.Name, Payload: payload}
		}
		return en, nil

	case TypeTuple:
		tu := &types.Tuple{Elems: make([]types.Type, len(te.Elems))}
		for i, e := range te.Elems {
			et, err := r.Resolve(e)
			if err != nil {
				return nil, err
			}
			tu.Elems[i] = et
		}
		return tu, nil

	case TypeArray:
		if len(te.Elems) != 1 {
			return nil, fmt.Errorf("array type expression has %d element types", len(te.Elems))
		}
		et, err := r.Resolve(te.Elems[0])
		if err != nil {
			return nil, err
		}
		return &types.Array{Elem: et, Len: te.Len}, nil

	case TypeMap:
		if len(te.Elems) != 2 {
			return nil, fmt.Errorf("map type expression has %d element types", len(te.Elems))
		}
		kt, err := r.Resolve(te.Elems[0])
		if err != nil {
			return nil, err
		}
		vt, err := r.Resolve(te.Elems[1])
		if err != nil {
			return nil, err
		}
		return &types.Map{Key: kt, Value: vt}, nil

	case TypeSeq:
		if len(te.Elems) != 1 {
			return nil, fmt.Errorf("seq type expression has %d element types", len(te.Elems))
		}
		et, err := r.Resolve(te.Elems[0])
		if err != nil {
			return nil, err
		}
		return &types.Sequence{Elem: et}, nil
	}
	return nil, fmt.Errorf("invalid type expression kind %d", te.Kind)
}
