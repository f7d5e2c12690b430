package rules

import (
	"histdata/internal/model"
)

// TransformBatch converts raw records into their normalized shape for kind
// using doc. It is a pure function over its inputs: it preserves input
// order, never mutates the input records, and never partially mutates an
// output record — a record that fails mid-coercion is returned unchanged
// (minus alias renames already applied), per §4.1's "pass the raw record
// through" failure semantics. Coercion failures are reported via failed,
// keyed by the index into records; the orchestrator counts them into
// errors_encountered without halting the batch.
func (c *CompiledDocument) TransformBatch(records []model.Record, kind model.Kind) (out []model.Record, failed map[int]error) {
	rules := c.rules[kind]
	failed = make(map[int]error)
	out = make([]model.Record, len(records))

	for i, raw := range records {
		aliased := c.applyAliases(raw)
		normalized, err := c.transformOne(aliased, rules)
		if err != nil {
			failed[i] = err
			out[i] = aliased
			continue
		}
		out[i] = normalized
	}
	return out, failed
}

// applyAliases returns a shallow copy of raw with every key that matches a
// known alias renamed to its canonical name. raw is never mutated.
func (c *CompiledDocument) applyAliases(raw model.Record) model.Record {
	out := make(model.Record, len(raw))
	for k, v := range raw {
		if canon, ok := c.aliases[k]; ok {
			out[canon] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// transformOne applies rules to a single already-aliased record. On the
// first coercion error it returns the error and the caller falls back to
// forwarding the aliased-but-untransformed record.
func (c *CompiledDocument) transformOne(aliased model.Record, rules []compiledRule) (model.Record, error) {
	out := make(model.Record, len(rules))
	for _, r := range rules {
		raw, present := aliased[r.Source]
		if !present || raw == nil {
			if r.Default != nil {
				out[r.Target] = r.Default
			}
			// Missing optional field: left absent. Missing required field
			// with no default: left absent too, for §4.3 to catch.
			continue
		}

		if r.Coerce == nil {
			out[r.Target] = raw
			continue
		}

		coerced, err := r.Coerce(raw)
		if err != nil {
			return nil, err
		}
		if coerced == nil {
			if r.Default != nil {
				out[r.Target] = r.Default
			}
			continue
		}
		out[r.Target] = coerced
	}
	return out, nil
}
