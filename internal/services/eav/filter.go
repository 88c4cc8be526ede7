package eav

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// Condition is one parsed filter on an attribute, e.g. between:1,5
type Condition struct {
	Operator string   // As written, "eq" for plain literals
	Value    string   // Operand of single-value operators
	Values   []string // Operand of list and range operators
}

// Filter maps attribute names to conditions. Conditions are combined with AND.
type Filter map[string]Condition

// ParseFilterValue parses "operator:operand" or a plain literal.
// It reports false for empty input and malformed range operands.
func ParseFilterValue(raw string) (Condition, bool) {
	c, err := ParseFilterValueStrict(raw)
	return c, err == nil
}

// ParseFilterValueStrict is ParseFilterValue returning why a value was rejected
func ParseFilterValueStrict(raw string) (Condition, error) {
	if raw == "" {
		return Condition{}, errors.Wrap(ErrMalformedFilterOperand, "empty filter value")
	}

	idx := strings.Index(raw, ":")
	if idx < 0 {
		return Condition{Operator: string(repositories.OpEq), Value: raw}, nil
	}

	op := strings.ToLower(strings.TrimSpace(raw[:idx]))
	operand := raw[idx+1:]

	switch op {
	case "in", "not_in":
		return Condition{Operator: op, Values: splitList(operand)}, nil
	case "between", "not_between":
		values := strings.Split(operand, ",")
		if len(values) != 2 {
			return Condition{}, errors.Wrapf(ErrMalformedFilterOperand, "%s needs two values, got %q", op, operand)
		}
		return Condition{Operator: op, Values: []string{strings.TrimSpace(values[0]), strings.TrimSpace(values[1])}}, nil
	case "null", "is_null", "not_null", "is_not_null":
		return Condition{Operator: op}, nil
	}
	return Condition{Operator: op, Value: operand}, nil
}

// ParseFilterQuery parses request parameters keyed by attribute name.
// Empty and malformed values are dropped.
func ParseFilterQuery(params map[string]string) Filter {
	return parseFilterQuery(params, nil)
}

// parseFilterQuery reports each dropped value to rejected when it is set
func parseFilterQuery(params map[string]string, rejected func(name string, err error)) Filter {
	f := make(Filter, len(params))
	for name, raw := range params {
		c, err := ParseFilterValueStrict(raw)
		if err != nil {
			if rejected != nil {
				rejected(name, err)
			}
			continue
		}
		f[name] = c
	}
	return f
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Translator turns a Filter into storage predicates
type Translator struct {
	registry *Registry
	log      *zap.SugaredLogger
}

// NewTranslator creates a translator resolving names through registry
func NewTranslator(registry *Registry) *Translator {
	return &Translator{
		registry: registry,
		log:      logger.ComponentLogger("filter"),
	}
}

// Translate resolves each condition to a predicate, in attribute name order.
// Conditions on unknown attributes and malformed conditions are skipped.
func (t *Translator) Translate(ctx context.Context, f Filter) []repositories.AttributePredicate {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	log := logger.FromContext(ctx, t.log)
	preds := make([]repositories.AttributePredicate, 0, len(names))
	for _, name := range names {
		def, ok := t.registry.ByName(ctx, name)
		if !ok {
			log.Debugw("skipping filter on unknown attribute", logger.FieldAttribute, name)
			continue
		}

		pred, ok := toPredicate(def.ID, f[name])
		if !ok {
			log.Debugw("skipping malformed filter", logger.FieldAttribute, name)
			continue
		}
		preds = append(preds, pred)
	}
	return preds
}

// TranslateQuery parses request parameters and translates them. Values that
// do not parse are dropped and logged with the reason.
func (t *Translator) TranslateQuery(ctx context.Context, params map[string]string) []repositories.AttributePredicate {
	log := logger.FromContext(ctx, t.log)
	f := parseFilterQuery(params, func(name string, err error) {
		log.Debugw("dropping filter value", logger.FieldAttribute, name, logger.FieldError, err)
	})
	return t.Translate(ctx, f)
}

// NormalizeOperator maps operator spellings to predicate operators.
// Unrecognised operators compare for equality.
func NormalizeOperator(op string) repositories.PredicateOp {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "like", "contains":
		return repositories.OpContains
	case "starts_with":
		return repositories.OpStartsWith
	case "ends_with":
		return repositories.OpEndsWith
	case "gt", ">":
		return repositories.OpGt
	case "gte", ">=":
		return repositories.OpGte
	case "lt", "<":
		return repositories.OpLt
	case "lte", "<=":
		return repositories.OpLte
	case "in":
		return repositories.OpIn
	case "not_in":
		return repositories.OpNotIn
	case "between":
		return repositories.OpBetween
	case "not_between":
		return repositories.OpNotBetween
	case "null", "is_null":
		return repositories.OpNull
	case "not_null", "is_not_null":
		return repositories.OpNotNull
	}
	return repositories.OpEq
}

func toPredicate(attributeID int64, c Condition) (repositories.AttributePredicate, bool) {
	pred := repositories.AttributePredicate{AttributeID: attributeID, Op: NormalizeOperator(c.Operator)}

	switch pred.Op {
	case repositories.OpNull, repositories.OpNotNull:
	case repositories.OpIn, repositories.OpNotIn:
		pred.Values = c.Values
	case repositories.OpBetween, repositories.OpNotBetween:
		if len(c.Values) != 2 {
			return pred, false
		}
		pred.Values = c.Values
	default:
		if c.Value == "" {
			return pred, false
		}
		pred.Value = c.Value
	}
	return pred, true
}
