package journal

// Summary aggregates statistics over a decision list.
type Summary struct {
	Total    int
	ByKind   map[Kind]int
	Undone   int // undo records
	Redone   int // redo records
	OrderIDs int // distinct orders touched by a decision
}

// Summarize computes aggregate statistics from decisions.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(decisions []Decision) *Summary {
	s := &Summary{
		ByKind: make(map[Kind]int),
	}
	orders := make(map[string]bool)
	for _, d := range decisions {
		s.Total++
		s.ByKind[d.Kind]++
		switch d.Kind {
		case KindUndo:
			s.Undone++
		case KindRedo:
			s.Redone++
		}
		if d.OrderID != "" {
			orders[d.OrderID] = true
		}
	}
	s.OrderIDs = len(orders)
	return s
}
