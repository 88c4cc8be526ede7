package sqlstore

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

const projectColumns = "p.id, p.name, p.status, p.created_at, p.updated_at"

// compiledQuery is a project listing compiled to SQL for one dialect
type compiledQuery struct {
	SQL       string
	Args      []interface{}
	CountSQL  string
	CountArgs []interface{}
}

// queryBuilder accumulates joins and where clauses with their arguments.
// Join arguments precede where arguments in the final statement.
type queryBuilder struct {
	owner        entities.OwnerKind
	joins        []string
	joinArgs     []interface{}
	whereClauses []string
	whereArgs    []interface{}
	orderBy      string
}

func newQueryBuilder(owner entities.OwnerKind) *queryBuilder {
	return &queryBuilder{owner: owner}
}

// existsClause matches owners having a value row for the attribute
const existsClause = "EXISTS (SELECT 1 FROM attribute_values av WHERE av.owner_kind = ? AND av.owner_id = p.id AND av.attribute_id = ?%s)"

func (qb *queryBuilder) addPredicate(pred repositories.AttributePredicate) error {
	if err := pred.Validate(); err != nil {
		return errors.Wrap(err, "invalid attribute predicate")
	}

	args := []interface{}{string(qb.owner), pred.AttributeID}
	var cond string

	switch pred.Op {
	case repositories.OpNull:
		qb.where("NOT "+fmt.Sprintf(existsClause, ""), args...)
		return nil
	case repositories.OpNotNull:
		qb.where(fmt.Sprintf(existsClause, ""), args...)
		return nil
	case repositories.OpEq:
		cond = " AND av.value = ?"
		args = append(args, pred.Value)
	case repositories.OpContains:
		cond = " AND av.value LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLikePattern(pred.Value)+"%")
	case repositories.OpStartsWith:
		cond = " AND av.value LIKE ? ESCAPE '\\'"
		args = append(args, escapeLikePattern(pred.Value)+"%")
	case repositories.OpEndsWith:
		cond = " AND av.value LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLikePattern(pred.Value))
	case repositories.OpGt:
		cond = " AND av.value > ?"
		args = append(args, pred.Value)
	case repositories.OpGte:
		cond = " AND av.value >= ?"
		args = append(args, pred.Value)
	case repositories.OpLt:
		cond = " AND av.value < ?"
		args = append(args, pred.Value)
	case repositories.OpLte:
		cond = " AND av.value <= ?"
		args = append(args, pred.Value)
	case repositories.OpIn:
		if len(pred.Values) == 0 {
			// Membership in an empty set never matches
			qb.where("1 = 0")
			return nil
		}
		cond = " AND av.value IN (" + placeholders(len(pred.Values)) + ")"
		args = appendStrings(args, pred.Values)
	case repositories.OpNotIn:
		if len(pred.Values) > 0 {
			cond = " AND av.value NOT IN (" + placeholders(len(pred.Values)) + ")"
			args = appendStrings(args, pred.Values)
		}
	case repositories.OpBetween:
		cond = " AND av.value BETWEEN ? AND ?"
		args = append(args, pred.Values[0], pred.Values[1])
	case repositories.OpNotBetween:
		cond = " AND av.value NOT BETWEEN ? AND ?"
		args = append(args, pred.Values[0], pred.Values[1])
	}

	qb.where(fmt.Sprintf(existsClause, cond), args...)
	return nil
}

// addHasAny matches owners with a value for any of the attributes
func (qb *queryBuilder) addHasAny(attributeIDs []int64) {
	args := []interface{}{string(qb.owner)}
	for _, id := range attributeIDs {
		args = append(args, id)
	}
	qb.where("EXISTS (SELECT 1 FROM attribute_values av WHERE av.owner_kind = ? AND av.owner_id = p.id AND av.attribute_id IN ("+
		placeholders(len(attributeIDs))+"))", args...)
}

// setOrder orders by the raw value of one attribute. The inner join
// excludes owners without a value for the attribute.
func (qb *queryBuilder) setOrder(order *repositories.AttributeOrder) {
	if order == nil {
		qb.orderBy = "p.id ASC"
		return
	}

	qb.joins = append(qb.joins,
		"INNER JOIN attribute_values ord ON ord.owner_kind = ? AND ord.owner_id = p.id AND ord.attribute_id = ?")
	qb.joinArgs = append(qb.joinArgs, string(qb.owner), order.AttributeID)

	direction := "ASC"
	if order.Desc {
		direction = "DESC"
	}
	qb.orderBy = "ord.value " + direction + ", p.id ASC"
}

func (qb *queryBuilder) where(clause string, args ...interface{}) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.whereArgs = append(qb.whereArgs, args...)
}

func (qb *queryBuilder) from() string {
	var b strings.Builder
	b.WriteString("FROM projects p")
	for _, j := range qb.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	b.WriteString(" WHERE p.deleted_at IS NULL")
	for _, c := range qb.whereClauses {
		b.WriteString(" AND ")
		b.WriteString(c)
	}
	return b.String()
}

// buildProjectQuery compiles a project listing into a page query and a count query
func buildProjectQuery(dialect Dialect, q *repositories.ProjectQuery) (*compiledQuery, error) {
	if q == nil {
		q = &repositories.ProjectQuery{}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, errors.Newf("invalid paging: limit=%d offset=%d", q.Limit, q.Offset)
	}

	qb := newQueryBuilder(entities.OwnerProject)
	for _, pred := range q.Predicates {
		if err := qb.addPredicate(pred); err != nil {
			return nil, err
		}
	}
	if len(q.HasAny) > 0 {
		qb.addHasAny(q.HasAny)
	}
	qb.setOrder(q.OrderBy)

	args := append(append([]interface{}{}, qb.joinArgs...), qb.whereArgs...)
	from := qb.from()

	listSQL := "SELECT " + projectColumns + " " + from + " ORDER BY " + qb.orderBy
	listArgs := args
	if q.Limit > 0 {
		listSQL += " LIMIT ? OFFSET ?"
		listArgs = append(append([]interface{}{}, args...), q.Limit, q.Offset)
	}

	return &compiledQuery{
		SQL:       dialect.Rebind(listSQL),
		Args:      listArgs,
		CountSQL:  dialect.Rebind("SELECT COUNT(*) " + from),
		CountArgs: args,
	}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendStrings(args []interface{}, values []string) []interface{} {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

// escapeLikePattern escapes special characters in LIKE patterns for SQL ESCAPE clause
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
