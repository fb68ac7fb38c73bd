package household

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dukerupert/doubleup/internal/dictionary"
	"github.com/dukerupert/doubleup/internal/model"
)

// profileFields are the coded fields printed for each member, in order.
var profileFields = []struct {
	name string
	get  func(*model.Person) string
}{
	{"SEX", func(p *model.Person) string { return p.Sex }},
	{"MARST", func(p *model.Person) string { return p.MaritalStatus }},
	{"EMPSTAT", func(p *model.Person) string { return p.EmpStatus }},
	{"FTYPE", func(p *model.Person) string { return p.FamilyType }},
	{"FAMREL", func(p *model.Person) string { return p.FamilyRel }},
}

// Profile writes one line per household member describing their relationship
// to the householder, age and coded demographics. Members already placed in
// a subunit carry its id, and a partitioned household ends with one line per
// subunit listing its members' line numbers.
func Profile(w io.Writer, hh *model.Household, cb dictionary.Codebook) error {
	for i, p := range hh.Persons {
		relate, err := cb.Describe("RELATE", p.Relate)
		if err != nil {
			return fmt.Errorf("profile household %s: %w", hh.ID, err)
		}
		line := fmt.Sprintf("%d. %s - %d", i, relate, p.Age)
		for _, f := range profileFields {
			desc, err := cb.Describe(f.name, f.get(p))
			if err != nil {
				return fmt.Errorf("profile household %s: %w", hh.ID, err)
			}
			line += "; " + desc
		}
		if p.Subunit != model.Unassigned {
			line += fmt.Sprintf(" [subunit %d]", p.Subunit)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
	}
	for _, s := range hh.Subunits {
		if _, err := fmt.Fprintf(w, "subunit %d: lines %s\n", s.ID, joinLines(s.Lines())); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
	}
	return nil
}

func joinLines(lines []model.LineNo) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = strconv.Itoa(int(l))
	}
	return strings.Join(parts, ", ")
}
