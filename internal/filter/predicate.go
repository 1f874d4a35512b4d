package filter

// Field names a filterable task attribute.
type Field string

const (
	FieldTeamID    Field = "team_id"
	FieldStatus    Field = "status"
	FieldPriority  Field = "priority"
	FieldCreatedBy Field = "created_by"
	FieldDueDate   Field = "due_date"
	FieldCreatedAt Field = "created_at"
	FieldUpdatedAt Field = "updated_at"
	FieldSearch    Field = "search"   // title or description
	FieldAssignee  Field = "assignee" // user id of any assignment
	FieldTagID     Field = "tag_id"
	FieldTagName   Field = "tag_name"
)

// CondOp is the comparison applied by a Cond.
type CondOp string

const (
	CondIn       CondOp = "in"
	CondContains CondOp = "contains"
	CondBefore   CondOp = "before"
	CondAfter    CondOp = "after"
	CondOn       CondOp = "on"
)

// Predicate is a node of a compiled filter: Cond, And or Or. A nil
// Predicate places no restriction.
type Predicate interface {
	predicate()
}

// Cond is a leaf comparison. Date comparisons carry one YYYY-MM-DD value.
type Cond struct {
	Field  Field
	Op     CondOp
	Values []string
}

// And matches when every child matches.
type And []Predicate

// Or matches when any child matches.
type Or []Predicate

func (Cond) predicate() {}
func (And) predicate()  {}
func (Or) predicate()   {}

// Join combines predicates with op, skipping nils. It returns nil for no
// predicates and the predicate itself for one.
func Join(op Operator, preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	if op == OpOr {
		return Or(kept)
	}
	return And(kept)
}
