package database

import (
	"fmt"
	"strings"

	"github.com/CrowderSoup/task-tracker/backend"
)

type table struct {
	name     string
	columns  []string
	writable map[string]bool
}

var tables = map[string]table{
	backend.TableTasks: {
		name:    backend.TableTasks,
		columns: []string{"id", "user_id", "title", "description", "due_date", "priority", "status", "goal_id", "created_at", "updated_at"},
		writable: map[string]bool{
			"title": true, "description": true, "due_date": true,
			"priority": true, "status": true, "goal_id": true,
		},
	},
	backend.TableGoals: {
		name:    backend.TableGoals,
		columns: []string{"id", "user_id", "name", "description", "start_date", "end_date", "created_at", "updated_at"},
		writable: map[string]bool{
			"name": true, "description": true, "start_date": true, "end_date": true,
		},
	},
}

func lookupTable(name string) (table, error) {
	t, ok := tables[name]
	if !ok {
		return table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func (t table) hasColumn(col string) bool {
	for _, c := range t.columns {
		if c == col {
			return true
		}
	}
	return false
}

func (t table) selectList() string {
	return strings.Join(t.columns, ", ")
}

var comparisons = map[backend.Operator]string{
	backend.OpEq:  "=",
	backend.OpNeq: "!=",
	backend.OpLt:  "<",
	backend.OpLte: "<=",
	backend.OpGt:  ">",
	backend.OpGte: ">=",
}

// whereClause renders preds as AND-ed SQL conditions with positional args.
func (t table) whereClause(preds []backend.Predicate) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	args := []any{}
	for _, p := range preds {
		sql, pargs, err := t.predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, pargs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func (t table) predicateSQL(p backend.Predicate) (string, []any, error) {
	if p.Op == backend.OpOr {
		if len(p.Any) == 0 {
			return "", nil, fmt.Errorf("empty or predicate")
		}
		parts := make([]string, 0, len(p.Any))
		args := []any{}
		for _, sub := range p.Any {
			sql, sargs, err := t.predicateSQL(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, sargs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	if !t.hasColumn(p.Field) {
		return "", nil, fmt.Errorf("column %q does not exist on %s", p.Field, t.name)
	}

	if op, ok := comparisons[p.Op]; ok {
		return fmt.Sprintf("%s %s ?", p.Field, op), []any{p.Value}, nil
	}

	switch p.Op {
	case backend.OpIsNull:
		return p.Field + " IS NULL", nil, nil
	case backend.OpNotNull:
		return p.Field + " IS NOT NULL", nil, nil
	case backend.OpILike:
		return fmt.Sprintf(`lower(%s) LIKE lower(?) ESCAPE '\'`, p.Field), []any{p.Value}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
}

func (t table) orderClause(order backend.Order) (string, error) {
	if order.Column == "" {
		return "ORDER BY rowid", nil
	}
	if !t.hasColumn(order.Column) {
		return "", fmt.Errorf("column %q does not exist on %s", order.Column, t.name)
	}
	dir := "DESC"
	if order.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, rowid %s", order.Column, dir, dir), nil
}

// columnValue converts a record value to a value sqlite can bind.
func columnValue(col string, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case float64, int, int64, bool:
		return val, nil
	}
	return nil, fmt.Errorf("unsupported value for column %q: %T", col, v)
}
