// Package schema compares the columns a driver reads from its catalog
// against the columns the migrations create.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes one table column. Type is compared case-insensitively.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Table is the expected shape of one table.
type Table struct {
	Name    string
	Columns []Column
}

// MismatchError lists what is wrong with a table. Extra columns are allowed.
type MismatchError struct {
	Table      string
	Missing    []string
	Mismatched []string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table %s schema validation failed:\n", e.Table)

	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "  missing columns: %s\n", strings.Join(e.Missing, ", "))
	}

	if len(e.Mismatched) > 0 {
		b.WriteString("  mismatched columns:\n")
		for _, msg := range e.Mismatched {
			fmt.Fprintf(&b, "    - %s\n", msg)
		}
	}

	return b.String()
}

// Compare checks actual, keyed by column name, against want. It returns a
// *MismatchError, or nil when every expected column is present with the
// expected type and nullability.
func Compare(want Table, actual map[string]Column) error {
	e := &MismatchError{Table: want.Name}

	for _, col := range want.Columns {
		got, ok := actual[col.Name]
		if !ok {
			e.Missing = append(e.Missing, col.Name)
			continue
		}

		if !strings.EqualFold(got.Type, col.Type) {
			e.Mismatched = append(e.Mismatched,
				fmt.Sprintf("%s: expected %s, got %s", col.Name, strings.ToLower(col.Type), strings.ToLower(got.Type)))
		}

		if got.Nullable != col.Nullable {
			e.Mismatched = append(e.Mismatched,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", col.Name, col.Nullable, got.Nullable))
		}
	}

	if len(e.Missing) == 0 && len(e.Mismatched) == 0 {
		return nil
	}

	sort.Strings(e.Missing)
	return e
}
