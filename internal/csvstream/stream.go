// Package csvstream delivers delimited text as bounded batches of header-keyed records.
package csvstream

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the number of records per batch when Options.ChunkSize is unset.
const DefaultChunkSize = 5000

// sniffWindow bounds how much of the stream is inspected to guess the delimiter.
const sniffWindow = 4 << 10

// Options controls how a stream is parsed.
type Options struct {
	// ChunkSize is the maximum number of records per batch. 0 uses DefaultChunkSize.
	ChunkSize int
	// Delimiter for fields. If 0, sniffs among ',', ';', '\t' and '|' from the header line.
	Delimiter rune
}

// Record is one data row keyed by (cleaned) header name.
type Record map[string]string

// Batch is a chunk of records sharing the stream's header.
type Batch struct {
	Fields  []string
	Records []Record
	// Offset is the 1-based data row number of the first record in the batch.
	Offset int
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// Stream is a lazy, finite, non-restartable sequence of batches.
type Stream struct {
	r      *csv.Reader
	fields []string
	chunk  int
	rows   int
	done   bool
}

// Open reads the header row and prepares batch delivery. A UTF-8 byte order
// mark is removed. An input without a header row yields a stream with no
// fields whose first Next returns io.EOF.
func Open(r io.Reader, opt Options) (*Stream, error) {
	br := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	delim := opt.Delimiter
	if delim == 0 {
		peek, _ := br.Peek(sniffWindow)
		delim = SniffDelimiter(peek)
	}
	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	chunk := opt.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	s := &Stream{r: cr, chunk: chunk}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return s, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	s.fields = make([]string, len(header))
	for i, h := range header {
		s.fields[i] = CleanHeader(h)
	}
	return s, nil
}

// Fields returns the cleaned header names in source order.
func (s *Stream) Fields() []string { return s.fields }

// Next returns the next batch of at most ChunkSize records. It returns io.EOF
// once the input is exhausted; a final short batch is returned with a nil error.
func (s *Stream) Next() (Batch, error) {
	if s.done {
		return Batch{}, io.EOF
	}
	b := Batch{Fields: s.fields, Offset: s.rows + 1}
	for len(b.Records) < s.chunk {
		row, err := s.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				break
			}
			return Batch{}, fmt.Errorf("read row %d: %w", s.rows+1, err)
		}
		s.rows++
		if blankRow(row) {
			continue
		}
		rec := make(Record, len(s.fields))
		for i, name := range s.fields {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		b.Records = append(b.Records, rec)
	}
	if len(b.Records) == 0 && s.done {
		return Batch{}, io.EOF
	}
	return b, nil
}

// Rows returns the number of data rows read so far, including blank rows.
func (s *Stream) Rows() int { return s.rows }

// CleanHeader trims whitespace and removes quotes from a header name.
func CleanHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, `"`, "")
	return strings.TrimSpace(h)
}

// SniffDelimiter picks the most frequent candidate delimiter in the first
// line of sample, defaulting to ','.
func SniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	best, bestCount := ',', 0
	for _, cand := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(cand))); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
