package subway

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-bexpr"
)

// Query selects peers from their attributes: their metadata plus `id`,
// see `Peer.Attributes`.
type Query interface {
	Match(attrs map[string]any) (bool, error)
}

// QueryFunc adapts a predicate to a `Query`.
type QueryFunc func(attrs map[string]any) bool

func (fn QueryFunc) Match(attrs map[string]any) (bool, error) {
	return fn(attrs), nil
}

// Match is a document query: each key is a dotted attribute path mapped to
// either a literal, which must be equal (or contained, for arrays), or an
// operator document. Supported operators are $eq, $ne, $gt, $gte, $lt,
// $lte, $in, $nin and $exists at field level, and $and, $or and $nor at
// the top level. The empty query matches everything.
type Match map[string]any

func (m Match) Match(attrs map[string]any) (bool, error) {
	return matchDocument(m, attrs)
}

type exprQuery struct {
	eval *bexpr.Evaluator
}

// Expr compiles a boolean expression such as `role == "worker" and id
// matches "^w-"`.
//
// Peers whose attributes cannot be evaluated, typically because they lack
// a field the expression uses, do not match.
func Expr(expression string) (Query, error) {
	eval, err := bexpr.CreateEvaluator(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryInvalid, err)
	}
	return exprQuery{eval: eval}, nil
}

// MustExpr is like `Expr` but panics on invalid expressions.
func MustExpr(expression string) Query {
	q, err := Expr(expression)
	if err != nil {
		panic(err)
	}
	return q
}

func (q exprQuery) Match(attrs map[string]any) (bool, error) {
	ok, err := q.eval.Evaluate(attrs)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// SelectPeer returns the id of the single neighbour matching `query`.
// Zero or several matches fail with `ErrNonUniquePeer`, wrapping
// `ErrNoPeerMatch` or `ErrAmbiguousPeer` respectively.
func (b *Bus) SelectPeer(query Query) (string, error) {
	if query == nil {
		return "", fmt.Errorf("%w: nil query", ErrQueryInvalid)
	}

	var matched []string
	for _, p := range b.Peers() {
		ok, err := query.Match(p.Attributes())
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrQueryInvalid, err)
		}
		if ok {
			matched = append(matched, p.id)
		}
	}

	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		return "", &selectionError{cause: ErrNoPeerMatch}
	default:
		return "", &selectionError{cause: ErrAmbiguousPeer, matched: len(matched)}
	}
}

// FilterPeers returns every neighbour matching `query`, in insertion order.
func (b *Bus) FilterPeers(query Query) ([]*Peer, error) {
	var matched []*Peer
	for _, p := range b.Peers() {
		ok, err := query.Match(p.Attributes())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryInvalid, err)
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func matchDocument(query map[string]any, doc map[string]any) (bool, error) {
	for key, cond := range query {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or", "$nor":
			ok, err = matchLogical(key, cond, doc)
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unknown top-level operator %s", key)
			}
			val, found := lookupField(doc, key)
			ok, err = matchField(cond, val, found)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(op string, cond any, doc map[string]any) (bool, error) {
	subs, err := subQueries(cond)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, sub := range subs {
		ok, err := matchDocument(sub, doc)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func subQueries(cond any) ([]map[string]any, error) {
	var subs []map[string]any
	switch v := cond.(type) {
	case []Match:
		for _, m := range v {
			subs = append(subs, m)
		}
	case []map[string]any:
		subs = v
	case []any:
		for _, elem := range v {
			doc, ok := asDocument(elem)
			if !ok {
				return nil, fmt.Errorf("expected a query, got %T", elem)
			}
			subs = append(subs, doc)
		}
	default:
		return nil, fmt.Errorf("expected a list of queries, got %T", cond)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("expected at least one query")
	}
	return subs, nil
}

func asDocument(v any) (map[string]any, bool) {
	switch doc := v.(type) {
	case Match:
		return doc, true
	case Meta:
		return doc, true
	case map[string]any:
		return doc, true
	default:
		return nil, false
	}
}

// lookupField resolves a dotted path. An exact key wins over a nested one.
func lookupField(doc map[string]any, path string) (any, bool) {
	if val, has := doc[path]; has {
		return val, true
	}

	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return nil, false
	}
	val, has := doc[head]
	if !has {
		return nil, false
	}
	sub, ok := asDocument(val)
	if !ok {
		return nil, false
	}
	return lookupField(sub, rest)
}

func isOperatorDocument(doc map[string]any) bool {
	if len(doc) == 0 {
		return false
	}
	for key := range doc {
		if !strings.HasPrefix(key, "$") {
			return false
		}
	}
	return true
}

func matchField(cond, val any, found bool) (bool, error) {
	ops, isDoc := asDocument(cond)
	if !isDoc || !isOperatorDocument(ops) {
		return found && equalOrContains(val, cond), nil
	}

	for op, arg := range ops {
		ok, err := applyOperator(op, arg, val, found)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func applyOperator(op string, arg, val any, found bool) (bool, error) {
	switch op {
	case "$eq":
		return found && equalOrContains(val, arg), nil
	case "$ne":
		return !(found && equalOrContains(val, arg)), nil
	case "$gt", "$gte", "$lt", "$lte":
		return found && anyElement(val, func(elem any) bool {
			c, ok := compare(elem, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}), nil
	case "$in", "$nin":
		candidates, ok := asList(arg)
		if !ok {
			return false, fmt.Errorf("%s expects a list, got %T", op, arg)
		}
		in := false
		for _, candidate := range candidates {
			if found && equalOrContains(val, candidate) {
				in = true
				break
			}
		}
		return in == (op == "$in"), nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("$exists expects a boolean, got %T", arg)
		}
		return found == want, nil
	default:
		return false, fmt.Errorf("unknown operator %s", op)
	}
}

// equalOrContains is true when `val` equals `target` or, for arrays, when
// one of its elements does.
func equalOrContains(val, target any) bool {
	if valuesEqual(val, target) {
		return true
	}
	if _, isList := asList(target); isList {
		return false
	}
	return anyElement(val, func(elem any) bool {
		return valuesEqual(elem, target)
	})
}

// anyElement applies `pred` to each element of a list, or to `val` itself.
func anyElement(val any, pred func(any) bool) bool {
	elems, isList := asList(val)
	if !isList {
		return pred(val)
	}
	for _, elem := range elems {
		if pred(elem) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	if elems, ok := v.([]any); ok {
		return elems, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a scalar.
		return nil, false
	}
	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return elems, true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb), true
		}
		return 0, false
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
