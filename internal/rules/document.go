// Package rules implements the declarative mapping document and the engine
// that applies it to raw vendor records, turning them into the normalized
// shape each record kind expects.
package rules

import (
	"fmt"

	"histdata/internal/model"
)

// Coercion converts a raw field value into its normalized Go representation.
// Every coercion is a pure func(any) (any, error); none suspend, none
// consult time, none call external services.
type Coercion func(any) (any, error)

// FieldRule names how one target field on a normalized record is populated
// from a raw vendor record.
type FieldRule struct {
	Source   string  // raw field name to read
	Target   string  // normalized field name to write
	Coerce   Coercion // optional; identity if nil
	Default  any      // used when Source is absent or coerces to absent, whether or not Required is set
	Required bool
}

// Document is the Mapping Document: a keyed-by-kind collection of field
// rules plus the fixed alias table (source field name -> canonical name)
// applied before coercion, for ingesting already-normalized records from
// upstream transformers.
type Document struct {
	Rules   map[model.Kind][]FieldRule
	Aliases map[string]string
}

// compiledRule is a FieldRule with its coercion defaulted to identity.
type compiledRule struct {
	FieldRule
}

// CompiledDocument is the eagerly-validated form of a Document returned by
// Compile. Compile rejects empty and duplicate field names only; it has no
// list of known source fields per kind, so a rule naming a source field
// that never appears in a record is not rejected and that target is simply
// left absent at run time.
type CompiledDocument struct {
	rules   map[model.Kind][]compiledRule
	aliases map[string]string
}

// Compile validates doc and returns a CompiledDocument. It is the only
// place field-rule mistakes are allowed to surface: any rule with an empty
// Source or Target is a startup-time error, never a runtime one.
func Compile(doc Document) (*CompiledDocument, error) {
	out := &CompiledDocument{
		rules:   make(map[model.Kind][]compiledRule, len(doc.Rules)),
		aliases: make(map[string]string, len(doc.Aliases)),
	}
	for kind, rs := range doc.Rules {
		compiled := make([]compiledRule, 0, len(rs))
		seen := make(map[string]bool, len(rs))
		for _, r := range rs {
			if r.Source == "" {
				return nil, fmt.Errorf("rules: compile %s: rule with empty Source (target %q)", kind, r.Target)
			}
			if r.Target == "" {
				return nil, fmt.Errorf("rules: compile %s: rule with empty Target (source %q)", kind, r.Source)
			}
			if seen[r.Target] {
				return nil, fmt.Errorf("rules: compile %s: duplicate target field %q", kind, r.Target)
			}
			seen[r.Target] = true
			compiled = append(compiled, compiledRule{r})
		}
		out.rules[kind] = compiled
	}
	for from, to := range doc.Aliases {
		out.aliases[from] = to
	}
	return out, nil
}

// DefaultDocument returns the built-in Mapping Document, loaded from an
// embedded struct literal rather than a config file (file-based config
// discovery is explicitly out of core scope per §1).
func DefaultDocument() Document {
	return Document{
		Rules: map[model.Kind][]FieldRule{
			model.KindOHLCV: {
				{Source: "ts_event", Target: "ts_event", Coerce: CoerceEpochNanos, Required: true},
				{Source: "ts_recv", Target: "ts_recv", Coerce: CoerceEpochNanos},
				{Source: "instrument_id", Target: "instrument_id", Coerce: CoerceUint32, Required: true},
				{Source: "publisher_id", Target: "publisher_id", Coerce: CoerceUint16},
				{Source: "symbol", Target: "symbol", Coerce: CoerceEmptyToAbsent},
				{Source: "open", Target: "open", Coerce: CoerceDecimal, Required: true},
				{Source: "high", Target: "high", Coerce: CoerceDecimal, Required: true},
				{Source: "low", Target: "low", Coerce: CoerceDecimal, Required: true},
				{Source: "close", Target: "close", Coerce: CoerceDecimal, Required: true},
				{Source: "volume", Target: "volume", Coerce: CoerceUint64, Default: uint64(0)},
				{Source: "trade_count", Target: "trade_count", Coerce: CoerceUint64},
				{Source: "vwap", Target: "vwap", Coerce: CoerceDecimal},
			},
			model.KindTrade: {
				{Source: "ts_event", Target: "ts_event", Coerce: CoerceEpochNanos, Required: true},
				{Source: "ts_recv", Target: "ts_recv", Coerce: CoerceEpochNanos},
				{Source: "instrument_id", Target: "instrument_id", Coerce: CoerceUint32, Required: true},
				{Source: "publisher_id", Target: "publisher_id", Coerce: CoerceUint16},
				{Source: "symbol", Target: "symbol", Coerce: CoerceEmptyToAbsent},
				{Source: "price", Target: "price", Coerce: CoerceDecimal, Required: true},
				{Source: "size", Target: "size", Coerce: CoerceUint32, Required: true},
				{Source: "side", Target: "side", Coerce: CoerceEnum(map[string]string{
					"b": "B", "buy": "B", "s": "S", "sell": "S", "n": "N", "none": "N",
				})},
				{Source: "sequence", Target: "sequence", Coerce: CoerceUint64},
				{Source: "action", Target: "action", Coerce: CoerceEmptyToAbsent},
			},
			model.KindTBBO: {
				{Source: "ts_event", Target: "ts_event", Coerce: CoerceEpochNanos, Required: true},
				{Source: "ts_recv", Target: "ts_recv", Coerce: CoerceEpochNanos},
				{Source: "instrument_id", Target: "instrument_id", Coerce: CoerceUint32, Required: true},
				{Source: "publisher_id", Target: "publisher_id", Coerce: CoerceUint16},
				{Source: "symbol", Target: "symbol", Coerce: CoerceEmptyToAbsent},
				{Source: "bid_px", Target: "bid_px", Coerce: CoerceDecimal},
				{Source: "ask_px", Target: "ask_px", Coerce: CoerceDecimal},
				{Source: "bid_sz", Target: "bid_sz", Coerce: CoerceUint32},
				{Source: "ask_sz", Target: "ask_sz", Coerce: CoerceUint32},
				{Source: "bid_ct", Target: "bid_ct", Coerce: CoerceUint32},
				{Source: "ask_ct", Target: "ask_ct", Coerce: CoerceUint32},
				{Source: "sequence", Target: "sequence", Coerce: CoerceUint64},
			},
			model.KindStatistics: {
				{Source: "ts_event", Target: "ts_event", Coerce: CoerceEpochNanos, Required: true},
				{Source: "ts_recv", Target: "ts_recv", Coerce: CoerceEpochNanos},
				{Source: "instrument_id", Target: "instrument_id", Coerce: CoerceUint32, Required: true},
				{Source: "publisher_id", Target: "publisher_id", Coerce: CoerceUint16},
				{Source: "symbol", Target: "symbol", Coerce: CoerceEmptyToAbsent},
				{Source: "stat_type", Target: "stat_type", Coerce: CoerceEnum(map[string]string{
					"settlement": "settlement", "open_interest": "open_interest",
					"high_limit": "high_limit", "low_limit": "low_limit",
				})},
				{Source: "stat_value", Target: "stat_value", Coerce: CoerceDecimal},
				{Source: "open_interest", Target: "open_interest", Coerce: CoerceDecimal},
				{Source: "settlement_price", Target: "settlement_price", Coerce: CoerceDecimal},
				{Source: "high_limit", Target: "high_limit", Coerce: CoerceDecimal},
				{Source: "low_limit", Target: "low_limit", Coerce: CoerceDecimal},
				{Source: "sequence", Target: "sequence", Coerce: CoerceUint64},
				{Source: "flags", Target: "flags", Coerce: CoerceUint32},
			},
			model.KindDefinition: {
				{Source: "ts_event", Target: "ts_event", Coerce: CoerceEpochNanos, Required: true},
				{Source: "ts_recv", Target: "ts_recv", Coerce: CoerceEpochNanos},
				{Source: "instrument_id", Target: "instrument_id", Coerce: CoerceUint32, Required: true},
				{Source: "publisher_id", Target: "publisher_id", Coerce: CoerceUint16},
				{Source: "raw_symbol", Target: "raw_symbol", Coerce: CoerceEmptyToAbsent, Required: true},
				{Source: "security_update_action", Target: "security_update_action", Default: "A"},
				{Source: "instrument_class", Target: "instrument_class", Coerce: CoerceEmptyToAbsent},
				{Source: "min_price_increment", Target: "min_price_increment", Coerce: CoerceDecimal},
				{Source: "expiration", Target: "expiration", Coerce: CoerceEpochNanos},
				{Source: "activation", Target: "activation", Coerce: CoerceEpochNanos},
				{Source: "group", Target: "group", Default: ""},
				{Source: "asset", Target: "asset", Default: ""},
				{Source: "exchange", Target: "exchange", Coerce: CoerceEmptyToAbsent},
				{Source: "currency", Target: "currency", Coerce: CoerceEmptyToAbsent},
				{Source: "rtype", Target: "rtype", Coerce: CoerceInt, Default: int32(19)},
				{Source: "inst_attrib_value", Target: "inst_attrib_value", Coerce: CoerceInt, Default: int32(0)},
				{Source: "min_lot_size", Target: "min_lot_size", Coerce: CoerceInt, Default: int32(0)},
				{Source: "min_lot_size_block", Target: "min_lot_size_block", Coerce: CoerceInt, Default: int32(0)},
				{Source: "min_lot_size_round_lot", Target: "min_lot_size_round_lot", Coerce: CoerceInt, Default: int32(0)},
			},
		},
		Aliases: map[string]string{
			"record_type":   "rtype",
			"update_action": "security_update_action",
		},
	}
}
