package document

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/jacentio/cfgtree/tree"
)

func decodeHCL(data []byte, filename string) (tree.Map, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %w", diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("parse hcl: unexpected body %T", file.Body)
	}
	return bodyMap(body)
}

// member is an attribute or block waiting to be placed in source order.
type member struct {
	offset int
	path   []string
	value  tree.Value
}

func bodyMap(body *hclsyntax.Body) (tree.Map, error) {
	members := make([]member, 0, len(body.Attributes)+len(body.Blocks))

	for name, attr := range body.Attributes {
		v, err := exprValue(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		members = append(members, member{offset: attr.SrcRange.Start.Byte, path: []string{name}, value: v})
	}
	for _, block := range body.Blocks {
		if _, ok := body.Attributes[block.Type]; ok {
			return nil, fmt.Errorf("%w: %q is both an attribute and a block", ErrDuplicateKey, block.Type)
		}
		inner, err := bodyMap(block.Body)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", block.Type, err)
		}
		path := append([]string{block.Type}, block.Labels...)
		members = append(members, member{offset: block.TypeRange.Start.Byte, path: path, value: inner})
	}

	sort.Slice(members, func(i, j int) bool { return members[i].offset < members[j].offset })

	m := tree.Map{}
	for _, mem := range members {
		var err error
		if m, err = insert(m, mem.path, mem.value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// insert places v under path, creating intermediate mappings and merging
// into existing ones.
func insert(m tree.Map, path []string, v tree.Value) (tree.Map, error) {
	key := path[0]
	for i, e := range m {
		if e.Key != key {
			continue
		}
		existing, isMap := e.Value.(tree.Map)
		if !isMap {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}

		if len(path) > 1 {
			sub, err := insert(existing, path[1:], v)
			if err != nil {
				return nil, err
			}
			m[i].Value = sub
			return m, nil
		}

		incoming, ok := v.(tree.Map)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		for _, ie := range incoming {
			var err error
			if existing, err = insert(existing, []string{ie.Key}, ie.Value); err != nil {
				return nil, fmt.Errorf("%q: %w", key, err)
			}
		}
		m[i].Value = existing
		return m, nil
	}

	if len(path) == 1 {
		return append(m, tree.Entry{Key: key, Value: v}), nil
	}
	sub, err := insert(tree.Map{}, path[1:], v)
	if err != nil {
		return nil, err
	}
	return append(m, tree.Entry{Key: key, Value: sub}), nil
}

// exprValue evaluates a literal expression. Object and tuple constructors are
// walked directly so their source order survives.
func exprValue(expr hclsyntax.Expression) (tree.Value, error) {
	switch e := expr.(type) {
	case *hclsyntax.ObjectConsExpr:
		m := make(tree.Map, 0, len(e.Items))
		for _, item := range e.Items {
			k, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			key, err := ctyScalar(k)
			if err != nil {
				return nil, err
			}
			v, err := exprValue(item.ValueExpr)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			m = append(m, tree.Entry{Key: key, Value: v})
		}
		return m, nil
	case *hclsyntax.TupleConsExpr:
		m := make(tree.Map, 0, len(e.Exprs))
		for i, elem := range e.Exprs {
			v, err := exprValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			m = append(m, tree.Entry{Key: strconv.Itoa(i), Value: v})
		}
		return m, nil
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	return ctyValue(v)
}

func ctyValue(v cty.Value) (tree.Value, error) {
	v, _ = v.Unmark()
	if v.IsNull() {
		return tree.Scalar(""), nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("%w: unknown value", ErrUnsupportedValue)
	}

	ty := v.Type()
	if ty.IsPrimitiveType() {
		s, err := ctyScalar(v)
		if err != nil {
			return nil, err
		}
		return tree.Scalar(s), nil
	}
	if !ty.IsCollectionType() && !ty.IsObjectType() && !ty.IsTupleType() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, ty.FriendlyName())
	}

	keyed := ty.IsObjectType() || ty.IsMapType()
	m := make(tree.Map, 0, v.LengthInt())
	i := 0
	for it := v.ElementIterator(); it.Next(); i++ {
		k, ev := it.Element()
		key := strconv.Itoa(i)
		if keyed {
			key = k.AsString()
		}
		child, err := ctyValue(ev)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		m = append(m, tree.Entry{Key: key, Value: child})
	}
	return m, nil
}

func ctyScalar(v cty.Value) (string, error) {
	v, _ = v.Unmark()
	if v.IsNull() {
		return "", nil
	}
	if !v.IsKnown() {
		return "", fmt.Errorf("%w: unknown value", ErrUnsupportedValue)
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	case cty.Bool:
		return strconv.FormatBool(v.True()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Type().FriendlyName())
	}
}

// EncodeHCL renders m as HCL: scalars become string attributes and nested
// mappings become unlabeled blocks. Every key must be a valid HCL identifier.
func EncodeHCL(m tree.Map) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	if err := writeBody(f.Body(), m); err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

func writeBody(body *hclwrite.Body, m tree.Map) error {
	for _, e := range m {
		if !hclsyntax.ValidIdentifier(e.Key) {
			return fmt.Errorf("%w: key %q is not an HCL identifier", ErrUnsupportedValue, e.Key)
		}
		switch v := e.Value.(type) {
		case tree.Map:
			block := body.AppendNewBlock(e.Key, nil)
			if err := writeBody(block.Body(), v); err != nil {
				return err
			}
		case tree.Scalar:
			body.SetAttributeValue(e.Key, cty.StringVal(string(v)))
		default:
			body.SetAttributeValue(e.Key, cty.StringVal(""))
		}
	}
	return nil
}
