package household

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/doubleup/internal/model"
)

// Partition assigns every member of the householder's SPM unit to a family
// subunit and records the subunit count and grouping on the household.
//
// Members are visited oldest first. An independent adult joins their
// partner's subunit if the partner already has one, otherwise opens a new
// subunit. A dependent joins the subunit of their oldest parent in the unit.
// Dependents with no parent in the unit are left for the sweep: if the
// householder is among them they get a subunit of their own, and everyone
// else left over joins the householder.
func Partition(hh *model.Household) error {
	fam, err := Resolve(hh)
	if err != nil {
		return err
	}

	members := fam.Members()
	for _, p := range members {
		p.Subunit = model.Unassigned
	}

	n := 0
	for _, p := range members {
		if fam.IsIndependentAdult(p) {
			if partner := fam.Partner(p); partner != nil && partner.Subunit != model.Unassigned {
				p.Subunit = partner.Subunit
			} else {
				n++
				p.Subunit = model.SubunitID(n)
			}
			continue
		}
		if parents := fam.Parents(p); len(parents) > 0 {
			p.Subunit = parents[0].Subunit
		}
	}

	head := hh.Householder()
	if head.Subunit == model.Unassigned {
		n++
		head.Subunit = model.SubunitID(n)
	}
	for _, p := range members {
		if p.Subunit == model.Unassigned {
			p.Subunit = head.Subunit
		}
	}

	hh.NSubunits = n
	hh.Subunits = hh.GroupSubunits()
	return nil
}

// PartitionAll partitions every household using up to workers goroutines.
// Households are independent, so the result does not depend on scheduling.
// The first failure cancels the rest.
func PartitionAll(ctx context.Context, households []*model.Household, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, hh := range households {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := Partition(hh); err != nil {
				return fmt.Errorf("partition household %s: %w", hh.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
