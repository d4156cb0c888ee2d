package counts

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DefaultTable is the SQLite table holding hourly edge counts.
const DefaultTable = "edge_counts"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadSQLite reads observations from a table with edge_uid, hour and
// total_trip_count columns (or any of the accepted aliases).
func LoadSQLite(ctx context.Context, path, table string, w Window) (*Result, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, eris.Errorf("counts: invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "counts: open sqlite")
	}
	defer func() { _ = db.Close() }()

	return QueryObservations(ctx, db, table, w)
}

// QueryObservations reads every row of table and converts it to
// observations, applying the window.
func QueryObservations(ctx context.Context, db *sql.DB, table string, w Window) (*Result, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	edgeIdx := columnIndex(cols, edgeColumns)
	timeIdx := columnIndex(cols, timeColumns)
	countIdx := columnIndex(cols, countColumns)
	if edgeIdx < 0 || timeIdx < 0 || countIdx < 0 {
		return nil, eris.Errorf("counts: table %s columns %v lack edge, time or count column", table, cols)
	}

	// Column names come from the table's own schema.
	q := fmt.Sprintf(`SELECT CAST(%q AS TEXT), CAST(%q AS TEXT), CAST(%q AS TEXT) FROM %q`,
		cols[edgeIdx], cols[timeIdx], cols[countIdx], table)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "counts: query %s", table)
	}
	defer func() { _ = rows.Close() }()

	res := &Result{}
	n := 0
	for rows.Next() {
		n++
		var edge, ts, count sql.NullString
		if err := rows.Scan(&edge, &ts, &count); err != nil {
			return nil, eris.Wrapf(err, "counts: scan %s row %d", table, n)
		}
		o, err := observation(fmt.Sprintf("%s row %d", table, n), edge.String, ts.String, count.String)
		if err != nil {
			return nil, err
		}
		if !w.Contains(o.Date) {
			res.OutOfWindow++
			continue
		}
		res.Observations = append(res.Observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "counts: iterate %s", table)
	}
	return res, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT 0`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "counts: inspect %s", table)
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "counts: columns of %s", table)
	}
	return cols, nil
}
