package household

import (
	"fmt"
	"sort"

	"github.com/dukerupert/doubleup/internal/model"
)

// IndependentAge is the age from which a person anchors their own subunit
// even without a partner or children.
const IndependentAge = 21

// LinkError reports a linkage field that cannot be resolved.
type LinkError struct {
	Household model.HouseholdID
	Line      model.LineNo
	Field     string
	Target    model.LineNo
	Err       error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("household %s line %d: %s=%d: %v", e.Household, e.Line, e.Field, e.Target, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Family resolves parent, partner and child relations among the members of
// a household's SPM unit.
type Family struct {
	members  []*model.Person
	byLine   map[model.LineNo]*model.Person
	partners map[*model.Person]*model.Person
}

// Resolve builds the relations for the householder's SPM unit. Members are
// ordered oldest first, ties kept in extract order. A link naming a line
// missing from the whole household is an error; a link to someone in the
// household but outside the unit resolves to nobody.
func Resolve(hh *model.Household) (*Family, error) {
	inHousehold := make(map[model.LineNo]bool, len(hh.Persons))
	for _, p := range hh.Persons {
		if inHousehold[p.Line] {
			return nil, &LinkError{Household: hh.ID, Line: p.Line, Field: "LINENO", Target: p.Line, Err: ErrDuplicateLine}
		}
		inHousehold[p.Line] = true
	}

	members := hh.UnitMembers()
	sort.SliceStable(members, func(i, j int) bool { return members[i].Age > members[j].Age })

	f := &Family{
		members:  members,
		byLine:   make(map[model.LineNo]*model.Person, len(members)),
		partners: make(map[*model.Person]*model.Person),
	}
	for _, p := range members {
		f.byLine[p.Line] = p
	}

	for _, p := range members {
		links := []struct {
			field string
			link  model.Link
		}{
			{"ASPOUSE", p.Spouse},
			{"PECOHAB", p.Partner},
			{"PELNMOM", p.Mother},
			{"PELNDAD", p.Father},
		}
		for _, l := range links {
			if target, ok := l.link.Get(); ok && !inHousehold[target] {
				return nil, &LinkError{Household: hh.ID, Line: p.Line, Field: l.field, Target: target, Err: ErrDanglingLink}
			}
		}

		spouse := f.lookup(p, p.Spouse)
		partner := f.lookup(p, p.Partner)
		switch {
		case spouse != nil && partner != nil && spouse != partner:
			target, _ := p.Partner.Get()
			return nil, &LinkError{Household: hh.ID, Line: p.Line, Field: "PECOHAB", Target: target, Err: ErrConflictingPartner}
		case spouse != nil:
			f.partners[p] = spouse
		case partner != nil:
			f.partners[p] = partner
		}
	}
	return f, nil
}

func (f *Family) lookup(self *model.Person, l model.Link) *model.Person {
	line, ok := l.Get()
	if !ok {
		return nil
	}
	p := f.byLine[line]
	if p == self {
		return nil
	}
	return p
}

// Members returns the unit members, oldest first.
func (f *Family) Members() []*model.Person {
	return f.members
}

// Parents returns the members named by p's mother or father link, oldest
// first.
func (f *Family) Parents(p *model.Person) []*model.Person {
	var parents []*model.Person
	for _, m := range f.members {
		if m == p {
			continue
		}
		if p.Mother.Is(m.Line) || p.Father.Is(m.Line) {
			parents = append(parents, m)
		}
	}
	return parents
}

// Partner returns the member named by p's spouse or unmarried partner link,
// or nil.
func (f *Family) Partner(p *model.Person) *model.Person {
	return f.partners[p]
}

// Children returns the members whose mother or father link names p.
func (f *Family) Children(p *model.Person) []*model.Person {
	var children []*model.Person
	for _, m := range f.members {
		if m == p {
			continue
		}
		if m.Mother.Is(p.Line) || m.Father.Is(p.Line) {
			children = append(children, m)
		}
	}
	return children
}

// IsIndependentAdult reports whether p anchors a subunit: 21 or older, or
// living with a partner or own children.
func (f *Family) IsIndependentAdult(p *model.Person) bool {
	return p.Age >= IndependentAge || f.Partner(p) != nil || len(f.Children(p)) > 0
}
