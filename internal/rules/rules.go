// Package rules evaluates ordered lists of declarative rules.
//
// A rule pairs a name with an evaluation that either produces a result or
// declines. Lists are evaluated in declared order, so priority is position.
package rules

// Rule produces an Out for inputs it matches.
type Rule[In, Out any] struct {
	Name string
	Eval func(In) (Out, bool)
}

// When builds a rule from a predicate and a result constructor.
func When[In, Out any](name string, pred func(In) bool, then func(In) Out) Rule[In, Out] {
	return Rule[In, Out]{
		Name: name,
		Eval: func(in In) (Out, bool) {
			if !pred(in) {
				var zero Out
				return zero, false
			}
			return then(in), true
		},
	}
}

// Emit builds a rule that returns a fixed result when pred holds.
func Emit[In, Out any](name string, pred func(In) bool, out Out) Rule[In, Out] {
	return When(name, pred, func(In) Out { return out })
}

// Match is a rule result together with the name of the rule that produced it.
type Match[Out any] struct {
	Rule  string
	Value Out
}

// First returns the result of the first matching rule.
func First[In, Out any](rs []Rule[In, Out], in In) (Match[Out], bool) {
	for _, r := range rs {
		if out, ok := r.Eval(in); ok {
			return Match[Out]{Rule: r.Name, Value: out}, true
		}
	}
	return Match[Out]{}, false
}

// Collect returns results of matching rules in order, stopping after limit
// results. A limit <= 0 means no limit.
func Collect[In, Out any](rs []Rule[In, Out], in In, limit int) []Out {
	var out []Out
	for _, r := range rs {
		if limit > 0 && len(out) >= limit {
			break
		}
		if v, ok := r.Eval(in); ok {
			out = append(out, v)
		}
	}
	return out
}
