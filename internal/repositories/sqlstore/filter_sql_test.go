package sqlstore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/repositories"
)

func TestEscapeLikePattern(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "plain", expected: "plain"},
		{input: "50%", expected: "50\\%"},
		{input: "a_b", expected: "a\\_b"},
		{input: "back\\slash", expected: "back\\\\slash"},
		{input: "%_\\", expected: "\\%\\_\\\\"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, escapeLikePattern(tc.input))
		})
	}
}

func TestBuildProjectQuery_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name  string
		query *repositories.ProjectQuery
	}{
		{
			name:  "unfiltered",
			query: nil,
		},
		{
			name: "in_and_not_null",
			query: &repositories.ProjectQuery{Predicates: []repositories.AttributePredicate{
				{AttributeID: 1, Op: repositories.OpIn, Values: []string{"low", "high"}},
				{AttributeID: 2, Op: repositories.OpNotNull},
			}},
		},
		{
			name: "between_null_contains",
			query: &repositories.ProjectQuery{Predicates: []repositories.AttributePredicate{
				{AttributeID: 3, Op: repositories.OpBetween, Values: []string{"2024-01-01", "2024-12-31"}},
				{AttributeID: 4, Op: repositories.OpNull},
				{AttributeID: 5, Op: repositories.OpContains, Value: "50%"},
			}},
		},
		{
			name: "ordered_page",
			query: &repositories.ProjectQuery{
				Predicates: []repositories.AttributePredicate{
					{AttributeID: 1, Op: repositories.OpGte, Value: "2024-01-01"},
				},
				OrderBy: &repositories.AttributeOrder{AttributeID: 2, Desc: true},
				Limit:   10,
				Offset:  20,
			},
		},
	}

	for _, tt := range tests {
		for _, dialect := range []Dialect{SQLite, Postgres} {
			name := tt.name + "_" + dialect.String()
			t.Run(name, func(t *testing.T) {
				compiled, err := buildProjectQuery(dialect, tt.query)
				require.NoError(t, err)
				g.Assert(t, name, []byte(renderCompiled(compiled)))
			})
		}
	}
}

func renderCompiled(c *compiledQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- list\n%s\n-- args\n%v\n", c.SQL, c.Args)
	fmt.Fprintf(&b, "-- count\n%s\n-- args\n%v\n", c.CountSQL, c.CountArgs)
	return b.String()
}
