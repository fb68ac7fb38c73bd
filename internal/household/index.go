// Package household groups extract rows into households and partitions each
// household's SPM unit into family subunits.
package household

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/doubleup/internal/model"
)

var (
	ErrMalformedID        = errors.New("malformed household id")
	ErrDuplicateLine      = errors.New("duplicate line number")
	ErrDanglingLink       = errors.New("link to a line outside the household")
	ErrConflictingPartner = errors.New("spouse and partner links name different persons")
)

// MalformedIDError identifies the row whose household id is unusable.
type MalformedIDError struct {
	Index    int
	PersonID string
	Value    string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("%s: person %d (%s): %q", ErrMalformedID, e.Index, e.PersonID, e.Value)
}

func (e *MalformedIDError) Unwrap() error {
	return ErrMalformedID
}

// Index groups persons into households keyed by household id. Households come
// out in order of first appearance and keep their members in input order, so
// the first member of each is the householder. The households reference the
// elements of persons; the slice must outlive them.
func Index(persons []model.Person) ([]*model.Household, error) {
	byID := make(map[model.HouseholdID]*model.Household)
	var households []*model.Household

	for i := range persons {
		p := &persons[i]
		if strings.TrimSpace(string(p.HouseholdID)) == "" {
			return nil, &MalformedIDError{Index: i, PersonID: p.PersonID, Value: string(p.HouseholdID)}
		}
		hh, ok := byID[p.HouseholdID]
		if !ok {
			hh = &model.Household{ID: p.HouseholdID}
			byID[p.HouseholdID] = hh
			households = append(households, hh)
		}
		hh.Persons = append(hh.Persons, p)
	}

	for _, hh := range households {
		head := hh.Householder()
		hh.Weight = head.HouseholdWeight
		hh.ReplicateWeights = head.HHReplicates
		hh.Threshold = head.SPM.Threshold
		hh.PovertyPercent = head.PovertyPercent()
	}
	return households, nil
}
