package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Location is a single "localidad" row: a named place inside a province,
// with an optional postal code and the id of its province in the master list.
type Location struct {
	ID               int64  `json:"id"`
	Name             string `json:"localidad"`
	Province         string `json:"provincia"`
	PostalCode       *int64 `json:"cp"`
	ProvinceMasterID int64  `json:"id_prov_mstr"`
}

// Column names of the localidades table, in canonical order. The same names
// head every exported CSV file.
var Columns = []string{"id", "localidad", "provincia", "cp", "id_prov_mstr"}

const (
	colID = iota
	colName
	colProvince
	colPostalCode
	colProvinceMasterID
)

// Record formats the location as a CSV record in column order.
// An absent postal code becomes an empty field.
func (l Location) Record() []string {
	cp := ""
	if l.PostalCode != nil {
		cp = strconv.FormatInt(*l.PostalCode, 10)
	}
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.Name,
		l.Province,
		cp,
		strconv.FormatInt(l.ProvinceMasterID, 10),
	}
}

// Args returns the location as statement arguments in column order.
func (l Location) Args() []any {
	var cp any
	if l.PostalCode != nil {
		cp = *l.PostalCode
	}
	return []any{l.ID, l.Name, l.Province, cp, l.ProvinceMasterID}
}

// ColumnMapping tells where each canonical column sits in a raw input record.
type ColumnMapping [5]int

// PositionalMapping reads the columns in canonical order.
var PositionalMapping = ColumnMapping{colID, colName, colProvince, colPostalCode, colProvinceMasterID}

// ErrPartialHeader reports a header that names some canonical columns but
// not all of them.
var ErrPartialHeader = errors.New("models: header names only some of the columns")

// MappingFromHeader locates the canonical columns by name in header.
// Names are matched case-insensitively after trimming blanks and a UTF-8
// BOM. A header naming none of the columns yields the positional mapping;
// one naming only some of them is rejected with ErrPartialHeader.
func MappingFromHeader(header []string) (ColumnMapping, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var m ColumnMapping
	var missing []string
	for i, col := range Columns {
		pos, ok := index[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		m[i] = pos
	}
	switch len(missing) {
	case 0:
		return m, nil
	case len(Columns):
		return PositionalMapping, nil
	default:
		return ColumnMapping{}, fmt.Errorf("%w: missing %s", ErrPartialHeader, strings.Join(missing, ", "))
	}
}

// Parse normalizes a raw record into a Location: id and id_prov_mstr must be
// integers, an empty cp means no postal code, text fields pass through.
func (m ColumnMapping) Parse(record []string) (Location, error) {
	for _, pos := range m {
		if pos >= len(record) {
			return Location{}, fmt.Errorf("models: record has %d fields, want at least %d", len(record), pos+1)
		}
	}

	id, err := parseInt(Columns[colID], record[m[colID]])
	if err != nil {
		return Location{}, err
	}
	masterID, err := parseInt(Columns[colProvinceMasterID], record[m[colProvinceMasterID]])
	if err != nil {
		return Location{}, err
	}

	loc := Location{
		ID:               id,
		Name:             record[m[colName]],
		Province:         record[m[colProvince]],
		ProvinceMasterID: masterID,
	}

	if raw := record[m[colPostalCode]]; raw != "" {
		cp, err := parseInt(Columns[colPostalCode], raw)
		if err != nil {
			return Location{}, err
		}
		loc.PostalCode = &cp
	}

	return loc, nil
}

// ParseLocation normalizes a record laid out in canonical column order.
func ParseLocation(record []string) (Location, error) {
	return PositionalMapping.Parse(record)
}

func parseInt(column, raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("models: invalid %s %q: %w", column, raw, err)
	}
	return v, nil
}

// RawBatch is a set of unparsed input records plus the mapping that says
// where each column lives in them.
type RawBatch struct {
	Mapping ColumnMapping
	Records [][]string
}

// ColumnMapping returns the batch mapping; the zero value reads positionally.
func (b RawBatch) ColumnMapping() ColumnMapping {
	if b.Mapping == (ColumnMapping{}) {
		return PositionalMapping
	}
	return b.Mapping
}
