package repositories

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// PredicateOp is a storage-level comparison applied to a stored attribute value
type PredicateOp string

const (
	OpEq         PredicateOp = "eq"
	OpContains   PredicateOp = "contains"
	OpStartsWith PredicateOp = "starts_with"
	OpEndsWith   PredicateOp = "ends_with"
	OpGt         PredicateOp = "gt"
	OpGte        PredicateOp = "gte"
	OpLt         PredicateOp = "lt"
	OpLte        PredicateOp = "lte"
	OpIn         PredicateOp = "in"
	OpNotIn      PredicateOp = "not_in"
	OpBetween    PredicateOp = "between"
	OpNotBetween PredicateOp = "not_between"
	OpNull       PredicateOp = "null"     // owner has no row for the attribute
	OpNotNull    PredicateOp = "not_null" // owner has a row for the attribute
)

// AttributePredicate restricts owners by one of their attribute values.
// Except for OpNull it requires the owner to have a row for AttributeID
// whose raw value satisfies Op. Predicates in a list are combined with AND.
type AttributePredicate struct {
	AttributeID int64
	Op          PredicateOp
	Value       string   // Operand of single-value operators
	Values      []string // Operand of in/not_in (any length) and between/not_between (exactly two)
}

// String returns a readable form, e.g. #3 in [low high]
func (p AttributePredicate) String() string {
	switch p.Op {
	case OpNull, OpNotNull:
		return fmt.Sprintf("#%d %s", p.AttributeID, p.Op)
	case OpIn, OpNotIn, OpBetween, OpNotBetween:
		return fmt.Sprintf("#%d %s %v", p.AttributeID, p.Op, p.Values)
	}
	return fmt.Sprintf("#%d %s %q", p.AttributeID, p.Op, p.Value)
}

// Validate checks that the operand shape matches the operator
func (p AttributePredicate) Validate() error {
	if p.AttributeID <= 0 {
		return errors.New("attribute ID is required")
	}
	switch p.Op {
	case OpEq, OpContains, OpStartsWith, OpEndsWith, OpGt, OpGte, OpLt, OpLte, OpNull, OpNotNull, OpIn, OpNotIn:
		return nil
	case OpBetween, OpNotBetween:
		if len(p.Values) != 2 {
			return errors.Newf("%s requires exactly two values, got %d", p.Op, len(p.Values))
		}
		return nil
	}
	return errors.Newf("unsupported predicate operator: %q", p.Op)
}

// AttributeOrder orders owners by the raw stored value of one attribute.
// Owners without a value for the attribute are excluded from the result.
type AttributeOrder struct {
	AttributeID int64
	Desc        bool
}
