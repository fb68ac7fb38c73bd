// Package dictionary translates IPUMS codes into descriptions and occupation
// codes into industries.
package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukerupert/doubleup/internal/model"
)

// ErrUnknownCode is returned when a code is missing from a dictionary.
var ErrUnknownCode = errors.New("unknown code")

// NotApplicableIndustry is the industry reported for occupation code "0".
const NotApplicableIndustry = "N/A (not applicable)"

// LookupError names the field and code that could not be translated.
type LookupError struct {
	Field string
	Code  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s=%q", ErrUnknownCode, e.Field, e.Code)
}

func (e *LookupError) Unwrap() error {
	return ErrUnknownCode
}

// Codebook maps field -> code -> description.
type Codebook map[string]map[string]string

// Describe returns the description of a code.
func (c Codebook) Describe(field, code string) (string, error) {
	desc, ok := c[field][code]
	if !ok {
		return "", &LookupError{Field: field, Code: code}
	}
	return desc, nil
}

// LoadCodebook reads a compact IPUMS dictionary from a JSON file.
func LoadCodebook(path string) (Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer f.Close()
	return ReadCodebook(f)
}

// ReadCodebook decodes a compact IPUMS dictionary.
func ReadCodebook(r io.Reader) (Codebook, error) {
	var c Codebook
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode codebook: %w", err)
	}
	return c, nil
}

// Occupations maps each occupation code to its industry.
type Occupations struct {
	industries []string
	byCode     map[string]string
}

// ReadOccupations decodes the hierarchical industry -> occupation code ->
// description file. Industry order follows the file.
func ReadOccupations(r io.Reader) (*Occupations, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode occupations: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode occupations: expected object, got %v", tok)
	}

	o := &Occupations{byCode: map[string]string{"0": NotApplicableIndustry}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode occupations: %w", err)
		}
		industry, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode occupations: expected industry name, got %v", tok)
		}
		var jobs map[string]string
		if err := dec.Decode(&jobs); err != nil {
			return nil, fmt.Errorf("decode occupations for %q: %w", industry, err)
		}
		o.industries = append(o.industries, industry)
		for code := range jobs {
			o.byCode[code] = industry
		}
	}
	return o, nil
}

// LoadOccupations reads the hierarchical occupation file.
func LoadOccupations(path string) (*Occupations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open occupations: %w", err)
	}
	defer f.Close()
	return ReadOccupations(f)
}

// Industries returns the industries in file order.
func (o *Occupations) Industries() []string {
	return o.industries
}

// IndustryOf returns the industry an occupation code belongs to.
func (o *Occupations) IndustryOf(occ string) (string, error) {
	ind, ok := o.byCode[occ]
	if !ok {
		return "", &LookupError{Field: "OCCLY", Code: occ}
	}
	return ind, nil
}

// Annotate sets IndustryLastYear on every person from their occupation last
// year. A miss aborts with the offending person id.
func (o *Occupations) Annotate(persons []model.Person) error {
	for i := range persons {
		ind, err := o.IndustryOf(persons[i].OccupationLastYr)
		if err != nil {
			return fmt.Errorf("person %s: %w", persons[i].PersonID, err)
		}
		persons[i].IndustryLastYear = ind
	}
	return nil
}
