package store

import (
	"fmt"
	"strings"

	"github.com/zulandar/taskyard/internal/filter"
)

// taskColumns maps plain filter fields to task columns.
var taskColumns = map[filter.Field]string{
	filter.FieldTeamID:    "tasks.team_id",
	filter.FieldStatus:    "tasks.status",
	filter.FieldPriority:  "tasks.priority",
	filter.FieldCreatedBy: "tasks.created_by",
	filter.FieldDueDate:   "tasks.due_date",
	filter.FieldCreatedAt: "tasks.created_at",
	filter.FieldUpdatedAt: "tasks.updated_at",
}

var dateOps = map[filter.CondOp]string{
	filter.CondBefore: "<",
	filter.CondAfter:  ">",
	filter.CondOn:     "=",
}

// compilePredicate renders a predicate tree as a WHERE fragment over the
// tasks table. A nil predicate yields an empty fragment.
func compilePredicate(p filter.Predicate) (string, []any, error) {
	switch p := p.(type) {
	case nil:
		return "", nil, nil
	case filter.Cond:
		return compileCond(p)
	case filter.And:
		return compileGroup(" AND ", p)
	case filter.Or:
		return compileGroup(" OR ", p)
	default:
		return "", nil, fmt.Errorf("store: unsupported predicate %T", p)
	}
}

func compileGroup(sep string, children []filter.Predicate) (string, []any, error) {
	var parts []string
	var args []any
	for _, c := range children {
		sql, a, err := compilePredicate(c)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

// compileCond renders one condition. Search folds the term in Go and the
// columns with LOWER(); SQLite connections from db.ConnectSQLite override
// LOWER() with a Unicode fold so both sides agree beyond ASCII.
func compileCond(c filter.Cond) (string, []any, error) {
	if len(c.Values) == 0 {
		return "", nil, fmt.Errorf("store: filter on %s has no values", c.Field)
	}
	switch c.Field {
	case filter.FieldSearch:
		term := "%" + escapeLike(strings.ToLower(c.Values[0])) + "%"
		return "(LOWER(tasks.title) LIKE ? ESCAPE '!' OR LOWER(tasks.description) LIKE ? ESCAPE '!')",
			[]any{term, term}, nil
	case filter.FieldAssignee:
		return "tasks.id IN (SELECT task_id FROM task_assignments WHERE user_id IN ?)",
			[]any{c.Values}, nil
	case filter.FieldTagID:
		return "tasks.id IN (SELECT task_id FROM task_tags WHERE tag_id IN ?)",
			[]any{c.Values}, nil
	case filter.FieldTagName:
		return "tasks.id IN (SELECT task_tags.task_id FROM task_tags JOIN tags ON tags.id = task_tags.tag_id WHERE tags.name IN ?)",
			[]any{c.Values}, nil
	}

	col, ok := taskColumns[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("store: unsupported filter field %q", c.Field)
	}
	if c.Op == filter.CondIn {
		return col + " IN ?", []any{c.Values}, nil
	}
	op, ok := dateOps[c.Op]
	if !ok {
		return "", nil, fmt.Errorf("store: unsupported operator %q on %s", c.Op, c.Field)
	}
	return fmt.Sprintf("DATE(%s) %s ?", col, op), []any{c.Values[0]}, nil
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
