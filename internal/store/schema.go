package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDataset means an external dataset document failed validation.
var ErrInvalidDataset = errors.New("invalid dataset document")

// datasetSchema describes the processed_data.json layout.
const datasetSchema = `{
  "type": "object",
  "required": ["metadata", "data"],
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["ageCols", "timestamp"],
      "properties": {
        "ageCols": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
        "stateCol": {"type": "string"},
        "timestamp": {"type": "string", "format": "date-time"}
      }
    },
    "data": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["state", "total", "breakdown"],
        "properties": {
          "state": {"type": "string", "minLength": 1},
          "total": {"type": "number", "minimum": 0},
          "breakdown": {"type": "object", "additionalProperties": {"type": "number", "minimum": 0}}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(datasetSchema)

// ValidationError lists the problems found in a dataset document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDataset.Error(), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDataset }

// ParseDataset validates and decodes a processed_data.json document. States
// must be distinct, breakdown columns must be listed in ageCols and each total
// must equal the sum of its breakdown. Missing columns are filled with 0 and
// groups are re-sorted by descending total.
func ParseDataset(b []byte) (*Dataset, error) {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, verr := range res.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}
		return nil, &ValidationError{Problems: problems}
	}

	var d Dataset
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	var problems []string
	cols := make(map[string]struct{}, len(d.Metadata.CategoryColumns))
	for _, c := range d.Metadata.CategoryColumns {
		if _, dup := cols[c]; dup {
			problems = append(problems, fmt.Sprintf("metadata.ageCols: duplicate column %q", c))
		}
		cols[c] = struct{}{}
	}
	seen := make(map[string]int, len(d.Data))
	for i, g := range d.Data {
		key := strings.TrimSpace(g.Key)
		if key == "" {
			problems = append(problems, fmt.Sprintf("data.%d: blank state", i))
		} else if first, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("data.%d: state %q already listed at data.%d", i, key, first))
		} else {
			seen[key] = i
		}
		var sum float64
		for c, v := range g.Breakdown {
			if _, ok := cols[c]; !ok {
				problems = append(problems, fmt.Sprintf("data.%d: breakdown column %q is not in ageCols", i, c))
			}
			sum += v
		}
		if math.Abs(sum-g.Total) > 1e-9*math.Max(1, math.Abs(g.Total)) {
			problems = append(problems, fmt.Sprintf("data.%d: total %v does not match breakdown sum %v", i, g.Total, sum))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &ValidationError{Problems: problems}
	}
	for i := range d.Data {
		d.Data[i].Key = strings.TrimSpace(d.Data[i].Key)
		for _, c := range d.Metadata.CategoryColumns {
			if _, ok := d.Data[i].Breakdown[c]; !ok {
				if d.Data[i].Breakdown == nil {
					d.Data[i].Breakdown = make(map[string]float64, len(d.Metadata.CategoryColumns))
				}
				d.Data[i].Breakdown[c] = 0
			}
		}
	}
	sort.SliceStable(d.Data, func(i, j int) bool { return d.Data[i].Total > d.Data[j].Total })
	if d.Metadata.GroupKeyColumn == "" {
		d.Metadata.GroupKeyColumn = "state"
	}
	return &d, nil
}
