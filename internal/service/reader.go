package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"localidades-etl/internal/models"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ErrMissingHeader is wrapped in a CsvReadError when the input is empty.
var ErrMissingHeader = errors.New("missing header row")

// InputDecoder resolves an encoding label such as "utf-8", "latin1" or
// "windows-1252".
func InputDecoder(label string) (encoding.Encoding, error) {
	if strings.TrimSpace(label) == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("service: unsupported input encoding %q: %w", label, err)
	}
	return enc, nil
}

// ReadLocations parses the whole input. The header row is used to locate
// the columns by name and then discarded. Every record must have as many
// fields as the header. Bytes the encoding cannot decode abort the read.
func ReadLocations(r io.Reader, enc encoding.Encoding) (models.RawBatch, error) {
	var decoder transform.Transformer = encoding.Nop.NewDecoder()
	if enc != nil {
		decoder = enc.NewDecoder()
	}
	// The UTF-8 decoder replaces invalid bytes with U+FFFD instead of failing.
	r = transform.NewReader(r, transform.Chain(decoder, encoding.UTF8Validator))

	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.RawBatch{}, &CsvReadError{Err: ErrMissingHeader}
		}
		return models.RawBatch{}, &CsvReadError{Err: err}
	}

	mapping, err := models.MappingFromHeader(header)
	if err != nil {
		return models.RawBatch{}, &CsvReadError{Err: err}
	}

	batch := models.RawBatch{Mapping: mapping}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.RawBatch{}, &CsvReadError{Err: err}
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}
