package domain

import "strings"

// AxisValue is one axis assignment within a matrix selection.
type AxisValue struct {
	Axis  string
	Value string
}

// Selection is one concrete assignment of matrix axes to values, ordered by
// axis name. An empty selection represents a job without a matrix.
type Selection []AxisValue

// Get returns the value for the named axis, or "" when the axis is absent.
func (s Selection) Get(axis string) (string, bool) {
	for _, av := range s {
		if av.Axis == axis {
			return av.Value, true
		}
	}
	return "", false
}

// Label renders the selection as "k=v, k=v" for display names.
func (s Selection) Label() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	for i, av := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(av.Axis)
		b.WriteString("=")
		b.WriteString(av.Value)
	}
	return b.String()
}

// ExpandMatrix computes the cross-product of the given axes.
//
// Axes are assumed sorted by name (the loader canonicalizes them); values keep
// their declared order. No axes yields a single empty selection, so every job
// produces at least one instance.
func ExpandMatrix(axes []Axis) []Selection {
	selections := []Selection{nil}
	for _, axis := range axes {
		next := make([]Selection, 0, len(selections)*len(axis.Values))
		for _, sel := range selections {
			for _, value := range axis.Values {
				grown := make(Selection, len(sel), len(sel)+1)
				copy(grown, sel)
				grown = append(grown, AxisValue{Axis: axis.Name, Value: value})
				next = append(next, grown)
			}
		}
		selections = next
	}
	return selections
}

// JobInstance is one schedulable expansion of a job for a specific matrix
// selection. Key is unique within a workflow and doubles as the display name.
type JobInstance struct {
	Key       InternedString
	JobID     InternedString
	Job       Job
	Selection Selection
	Needs     []InternedString
}

// InstanceKey builds the canonical instance name, "job" or "job (k=v, ...)".
func InstanceKey(jobID string, sel Selection) InternedString {
	if len(sel) == 0 {
		return NewInternedString(jobID)
	}
	return NewInternedString(jobID + " (" + sel.Label() + ")")
}
