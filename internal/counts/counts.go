// Package counts loads edge-level trip count observations.
package counts

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// Supported sources.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// timeLayouts are tried in order when parsing observation timestamps.
var timeLayouts = []string{
	"2006-01-02T15",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Column name candidates, matched case-insensitively.
var (
	edgeColumns  = []string{"edge_uid", "edgeuid", "edge_id"}
	timeColumns  = []string{"hour", "date", "timestamp", "day"}
	countColumns = []string{"total_trip_count", "count", "trips", "daily_count"}
)

// Window is a half-open [Start, End) date filter. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Source describes where observations are read from.
type Source struct {
	Path   string
	Format string // FormatCSV or FormatSQLite; empty infers from extension
	Table  string // SQLite table name
	Window Window
}

// Result holds loaded observations and the number filtered out by the window.
type Result struct {
	Observations []model.CountObservation
	OutOfWindow  int
}

// Load reads observations from src.
func Load(ctx context.Context, src Source) (*Result, error) {
	format := src.Format
	if format == "" {
		format = inferFormat(src.Path)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatCSV:
		res, err = LoadCSV(ctx, src.Path, src.Window)
	case FormatSQLite:
		res, err = LoadSQLite(ctx, src.Path, src.Table, src.Window)
	default:
		return nil, eris.Errorf("counts: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("component", "counts")).Info("observations loaded",
		zap.String("path", src.Path),
		zap.Int("observations", len(res.Observations)),
		zap.Int("out_of_window", res.OutOfWindow),
	)
	return res, nil
}

func inferFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return FormatSQLite
	}
	return ""
}

// ParseTime parses an observation timestamp and truncates it to its
// calendar day at UTC midnight.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognised timestamp %q", s)
}

// ParseCount parses a non-negative count. Integral floats such as "12.0"
// are accepted.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, eris.Errorf("invalid count %q", s)
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, eris.Errorf("negative count %d", n)
	}
	return n, nil
}

// observation builds one observation from raw fields.
func observation(record, edge, ts, count string) (model.CountObservation, error) {
	edge = strings.TrimSpace(edge)
	if edge == "" {
		return model.CountObservation{}, model.NewInputError(record, eris.New("missing edge id"))
	}
	date, err := ParseTime(ts)
	if err != nil {
		return model.CountObservation{}, model.NewInputError(record, err)
	}
	n, err := ParseCount(count)
	if err != nil {
		return model.CountObservation{}, model.NewInputError(record, err)
	}
	return model.CountObservation{EdgeID: edge, Date: date, Count: n}, nil
}

// columnIndex finds the first header matching any candidate.
func columnIndex(header []string, candidates []string) int {
	for _, c := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				return i
			}
		}
	}
	return -1
}
