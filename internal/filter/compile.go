package filter

// Compile turns one filter group into a predicate. callerID resolves
// assigned_to_me. Criteria are joined with f.Operator; an empty group
// compiles to nil.
func Compile(f TaskFilters, callerID string) Predicate {
	var conds []Predicate

	if f.TeamID != "" {
		conds = append(conds, in(FieldTeamID, f.TeamID))
	}
	if len(f.Status) > 0 {
		conds = append(conds, in(FieldStatus, f.Status...))
	}
	if len(f.Priority) > 0 {
		conds = append(conds, in(FieldPriority, f.Priority...))
	}
	if f.CreatedBy != "" {
		conds = append(conds, in(FieldCreatedBy, f.CreatedBy))
	}
	conds = append(conds,
		dateCond(FieldDueDate, f.DueDate),
		dateCond(FieldCreatedAt, f.CreatedAt),
		dateCond(FieldUpdatedAt, f.UpdatedAt),
	)
	if f.Search != "" {
		conds = append(conds, Cond{Field: FieldSearch, Op: CondContains, Values: []string{f.Search}})
	}

	// assigned_to_me and assignee_ids form one criterion: either matches.
	var assignees []string
	if f.AssignedToMe && callerID != "" {
		assignees = append(assignees, callerID)
	}
	assignees = append(assignees, f.AssigneeIDs...)
	if len(assignees) > 0 {
		conds = append(conds, in(FieldAssignee, dedupe(assignees)...))
	}

	// Likewise tag ids and tag names.
	var tagConds []Predicate
	if len(f.TagIDs) > 0 {
		tagConds = append(tagConds, in(FieldTagID, f.TagIDs...))
	}
	if len(f.TagNames) > 0 {
		tagConds = append(tagConds, in(FieldTagName, f.TagNames...))
	}
	conds = append(conds, Join(OpOr, tagConds...))

	return Join(f.Operator, conds...)
}

// CompileAdvanced compiles each group independently and joins the non-empty
// ones with a.GlobalOperator. No groups, or only empty ones, compile to nil.
func CompileAdvanced(a Advanced, callerID string) Predicate {
	groups := make([]Predicate, 0, len(a.Filters))
	for _, g := range a.Filters {
		groups = append(groups, Compile(g, callerID))
	}
	return Join(a.GlobalOperator, groups...)
}

func in(field Field, values ...string) Cond {
	return Cond{Field: field, Op: CondIn, Values: values}
}

func dateCond(field Field, d *DateFilter) Predicate {
	if d.Empty() {
		return nil
	}
	var bounds []Predicate
	if d.On != nil {
		bounds = append(bounds, Cond{Field: field, Op: CondOn, Values: []string{d.On.String()}})
	}
	if d.Before != nil {
		bounds = append(bounds, Cond{Field: field, Op: CondBefore, Values: []string{d.Before.String()}})
	}
	if d.After != nil {
		bounds = append(bounds, Cond{Field: field, Op: CondAfter, Values: []string{d.After.String()}})
	}
	return Join(OpAnd, bounds...)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
