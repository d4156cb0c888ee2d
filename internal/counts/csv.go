package counts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune            // default ','
	HasHeader bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh  chan<- []string // optional: receives the header row
	TrimSpace bool
}

// StreamCSV reads CSV rows and sends them to a channel. The caller must
// drain the row channel; both channels are closed when reading stops.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// LoadCSV reads observations from a CSV file with a header row.
func LoadCSV(ctx context.Context, path string, w Window) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "counts: open %s", path)
	}
	defer func() { _ = f.Close() }()

	res, err := ReadCSV(ctx, f, w)
	if err != nil {
		return nil, eris.Wrapf(err, "counts: read %s", path)
	}
	return res, nil
}

// ReadCSV parses observations from r. The header must name an edge id, a
// timestamp and a count column.
func ReadCSV(ctx context.Context, r io.Reader, w Window) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rows, errs := StreamCSV(ctx, r, CSVOptions{HasHeader: true, HeaderCh: headerCh, TrimSpace: true})

	res := &Result{}
	var edgeIdx, timeIdx, countIdx int
	resolved := false
	line := 1
	for row := range rows {
		line++
		if !resolved {
			var header []string
			select {
			case header = <-headerCh:
			default:
			}
			edgeIdx = columnIndex(header, edgeColumns)
			timeIdx = columnIndex(header, timeColumns)
			countIdx = columnIndex(header, countColumns)
			if edgeIdx < 0 || timeIdx < 0 || countIdx < 0 {
				return nil, eris.Errorf("counts: header %v lacks edge, time or count column", header)
			}
			resolved = true
		}

		rec := fmt.Sprintf("line %d", line)
		if len(row) <= max(edgeIdx, timeIdx, countIdx) {
			return nil, model.NewInputError(rec, eris.Errorf("expected at least %d fields, got %d", max(edgeIdx, timeIdx, countIdx)+1, len(row)))
		}
		o, err := observation(rec, row[edgeIdx], row[timeIdx], row[countIdx])
		if err != nil {
			return nil, err
		}
		if !w.Contains(o.Date) {
			res.OutOfWindow++
			continue
		}
		res.Observations = append(res.Observations, o)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return res, nil
}
