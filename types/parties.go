package types

// Parties lists the users a record is attached to. Authorization decisions
// and list scoping are both derived from it.
type Parties struct {
	Owners    []int
	Assignees []int
	Authors   []int
}

// IDs returns every party id in owner, assignee, author order.
func (p Parties) IDs() []int {
	ids := make([]int, 0, len(p.Owners)+len(p.Assignees)+len(p.Authors))
	ids = append(ids, p.Owners...)
	ids = append(ids, p.Assignees...)
	ids = append(ids, p.Authors...)
	return ids
}

// Empty reports whether the record has no parties at all.
func (p Parties) Empty() bool {
	return len(p.Owners) == 0 && len(p.Assignees) == 0 && len(p.Authors) == 0
}

// Has reports whether userID is one of the parties.
func (p Parties) Has(userID int) bool {
	for _, id := range p.IDs() {
		if id == userID {
			return true
		}
	}
	return false
}

func appendOptional(ids []int, id *int) []int {
	if id == nil {
		return ids
	}
	return append(ids, *id)
}
