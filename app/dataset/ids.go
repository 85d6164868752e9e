package dataset

import (
	"strings"
	"unicode"
)

// IDSet is an ordered set of identifiers used to restrict a stage to specific items.
type IDSet struct {
	order   []ID
	members map[ID]struct{}
}

func NewIDSet(ids ...ID) *IDSet {
	s := &IDSet{members: make(map[ID]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseIDs builds a set from raw flag values. Each value may hold several identifiers
// separated by whitespace or commas, so both `--data-ids "1 2"` and repeated flags work.
func ParseIDs(values []string) *IDSet {
	s := NewIDSet()
	for _, value := range values {
		fields := strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		for _, field := range fields {
			s.Add(ID(field))
		}
	}
	return s
}

func (s *IDSet) Add(id ID) {
	if id == "" {
		return
	}
	if _, ok := s.members[id]; ok {
		return
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *IDSet) Contains(id ID) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[id]
	return ok
}

func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *IDSet) Empty() bool {
	return s.Len() == 0
}

func (s *IDSet) IDs() []ID {
	if s == nil {
		return nil
	}
	return append([]ID(nil), s.order...)
}

func (s *IDSet) Strings() []string {
	out := make([]string, 0, s.Len())
	for _, id := range s.IDs() {
		out = append(out, string(id))
	}
	return out
}

// Select applies the shared selection rule of the download and upload stages: when ids is
// non-empty only members are kept, in collection order; the limit (0 = unbounded) is then
// applied to whatever remains.
func Select[T Identified](items []T, ids *IDSet, limit int) []T {
	selected := make([]T, 0, len(items))
	for _, item := range items {
		if !ids.Empty() && !ids.Contains(item.ItemID()) {
			continue
		}
		selected = append(selected, item)
		if limit > 0 && len(selected) == limit {
			break
		}
	}
	return selected
}

// Missing returns the members of ids that do not occur in items.
func Missing[T Identified](items []T, ids *IDSet) []ID {
	if ids.Empty() {
		return nil
	}
	seen := make(map[ID]struct{}, len(items))
	for _, item := range items {
		seen[item.ItemID()] = struct{}{}
	}
	var missing []ID
	for _, id := range ids.IDs() {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
