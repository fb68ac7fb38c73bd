package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/doubleup/internal/model"
)

// ResultStore persists per-household results of a run.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveHouseholds writes the partition, allocation and poverty figures of
// every household in a single transaction.
func (s *ResultStore) SaveHouseholds(runID string, households []*model.Household) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	hhStmt, err := tx.Prepare(
		`INSERT INTO households (run_id, cpsid, weight, poverty_percent, n_subunits, ambiguous, partial_resources, partial_poverty_percent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare household insert: %w", err)
	}
	defer hhStmt.Close()

	suStmt, err := tx.Prepare(
		`INSERT INTO subunits (run_id, cpsid, subunit, partial_resources, threshold, poverty_percent) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare subunit insert: %w", err)
	}
	defer suStmt.Close()

	memberStmt, err := tx.Prepare(
		`INSERT INTO subunit_members (run_id, cpsid, line, subunit, person_id, age) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare member insert: %w", err)
	}
	defer memberStmt.Close()

	allocStmt, err := tx.Prepare(
		`INSERT INTO allocations (run_id, cpsid, subunit, resource, amount) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare allocation insert: %w", err)
	}
	defer allocStmt.Close()

	ambStmt, err := tx.Prepare(`INSERT INTO ambiguities (run_id, cpsid, resource) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ambiguity insert: %w", err)
	}
	defer ambStmt.Close()

	for _, hh := range households {
		clean := hh.DoublingUp() && hh.Allocation != nil && !hh.Allocation.AnyAmbiguous()
		ambiguous := hh.Allocation != nil && hh.Allocation.AnyAmbiguous()

		var partial, partialPct *float64
		if clean {
			partial, partialPct = &hh.PartialResources, &hh.PartialPovertyPercent
		}
		if _, err := hhStmt.Exec(runID, hh.ID, hh.Weight, hh.PovertyPercent, hh.NSubunits, ambiguous, partial, partialPct); err != nil {
			return fmt.Errorf("insert household %s: %w", hh.ID, err)
		}

		for _, su := range hh.Subunits {
			var res, thresh, pct *float64
			if clean {
				res, thresh, pct = &su.PartialResources, &su.Threshold, &su.PovertyPercent
			}
			if _, err := suStmt.Exec(runID, hh.ID, su.ID, res, thresh, pct); err != nil {
				return fmt.Errorf("insert subunit %s/%d: %w", hh.ID, su.ID, err)
			}
			for _, p := range su.Members {
				if _, err := memberStmt.Exec(runID, hh.ID, p.Line, su.ID, p.PersonID, p.Age); err != nil {
					return fmt.Errorf("insert member %s/%d: %w", hh.ID, p.Line, err)
				}
			}
			if hh.Allocation == nil {
				continue
			}
			for _, r := range model.SplittableResources() {
				if hh.Allocation.IsAmbiguous(r) {
					continue
				}
				if _, err := allocStmt.Exec(runID, hh.ID, su.ID, r, hh.Allocation.Amount(su.ID, r)); err != nil {
					return fmt.Errorf("insert allocation %s/%d %s: %w", hh.ID, su.ID, r, err)
				}
			}
		}

		if hh.Allocation == nil {
			continue
		}
		for _, r := range hh.Allocation.AmbiguousResources() {
			if _, err := ambStmt.Exec(runID, hh.ID, r); err != nil {
				return fmt.Errorf("insert ambiguity %s %s: %w", hh.ID, r, err)
			}
		}
	}

	return tx.Commit()
}

const householdResultColumns = `run_id, cpsid, weight, poverty_percent, n_subunits, ambiguous, partial_resources, partial_poverty_percent`

func scanHouseholdResult(scanner interface{ Scan(...any) error }) (*model.HouseholdResult, error) {
	var h model.HouseholdResult
	var partial, partialPct sql.NullFloat64
	err := scanner.Scan(&h.RunID, &h.ID, &h.Weight, &h.PovertyPercent, &h.NSubunits, &h.Ambiguous, &partial, &partialPct)
	if err != nil {
		return nil, err
	}
	if partial.Valid {
		h.PartialResources = &partial.Float64
	}
	if partialPct.Valid {
		h.PartialPovertyPercent = &partialPct.Float64
	}
	return &h, nil
}

// ListHouseholds returns the stored households of a run, optionally only
// those doubling up.
func (s *ResultStore) ListHouseholds(runID string, doublingUpOnly bool) ([]model.HouseholdResult, error) {
	minSubunits := 0
	if doublingUpOnly {
		minSubunits = 2
	}
	rows, err := s.db.Query(
		`SELECT `+householdResultColumns+` FROM households WHERE run_id = ? AND n_subunits >= ? ORDER BY cpsid`,
		runID, minSubunits,
	)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var out []model.HouseholdResult
	for rows.Next() {
		h, err := scanHouseholdResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *ResultStore) GetHousehold(runID string, id model.HouseholdID) (*model.HouseholdResult, error) {
	h, err := scanHouseholdResult(s.db.QueryRow(
		`SELECT `+householdResultColumns+` FROM households WHERE run_id = ? AND cpsid = ?`, runID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household %s: %w", id, err)
	}
	return h, nil
}

// ListSubunits returns a household's subunits with their members and
// allocated amounts, ordered by subunit id.
func (s *ResultStore) ListSubunits(runID string, id model.HouseholdID) ([]model.SubunitResult, error) {
	rows, err := s.db.Query(
		`SELECT subunit, partial_resources, threshold, poverty_percent FROM subunits
		 WHERE run_id = ? AND cpsid = ? ORDER BY subunit`, runID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list subunits: %w", err)
	}
	defer rows.Close()

	var out []model.SubunitResult
	index := make(map[model.SubunitID]int)
	for rows.Next() {
		var su model.SubunitResult
		var res, thresh, pct sql.NullFloat64
		if err := rows.Scan(&su.ID, &res, &thresh, &pct); err != nil {
			return nil, fmt.Errorf("scan subunit: %w", err)
		}
		if res.Valid {
			su.PartialResources = &res.Float64
		}
		if thresh.Valid {
			su.Threshold = &thresh.Float64
		}
		if pct.Valid {
			su.PovertyPercent = &pct.Float64
		}
		index[su.ID] = len(out)
		out = append(out, su)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.Query(
		`SELECT subunit, line FROM subunit_members WHERE run_id = ? AND cpsid = ? ORDER BY subunit, line`, runID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list subunit members: %w", err)
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var su model.SubunitID
		var line model.LineNo
		if err := memberRows.Scan(&su, &line); err != nil {
			return nil, fmt.Errorf("scan subunit member: %w", err)
		}
		if i, ok := index[su]; ok {
			out[i].Lines = append(out[i].Lines, line)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	allocRows, err := s.db.Query(
		`SELECT subunit, resource, amount FROM allocations WHERE run_id = ? AND cpsid = ?`, runID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var su model.SubunitID
		var r model.Resource
		var amount float64
		if err := allocRows.Scan(&su, &r, &amount); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		i, ok := index[su]
		if !ok {
			continue
		}
		if out[i].Allocation == nil {
			out[i].Allocation = make(map[model.Resource]float64)
		}
		out[i].Allocation[r] = amount
	}
	return out, allocRows.Err()
}

// AmbiguityCounts returns, per resource, how many households of the run
// could not have it split.
func (s *ResultStore) AmbiguityCounts(runID string) (map[model.Resource]int, error) {
	rows, err := s.db.Query(
		`SELECT resource, COUNT(*) FROM ambiguities WHERE run_id = ? GROUP BY resource`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("count ambiguities: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Resource]int)
	for rows.Next() {
		var r model.Resource
		var n int
		if err := rows.Scan(&r, &n); err != nil {
			return nil, fmt.Errorf("scan ambiguity count: %w", err)
		}
		counts[r] = n
	}
	return counts, rows.Err()
}
