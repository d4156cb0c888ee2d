package artifact

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

var panelHeader = []string{"cell_id", "period", "value", "unit_type"}

// WritePanel writes panel rows as CSV with a header.
func WritePanel(w io.Writer, rows []model.PanelRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(panelHeader); err != nil {
		return eris.Wrap(err, "artifact: write panel header")
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.CellID),
			strconv.Itoa(r.Period),
			strconv.FormatInt(r.Value, 10),
			string(r.UnitType),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "artifact: write panel row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "artifact: flush panel")
}

// WritePanelFile writes the panel CSV to path.
func WritePanelFile(path string, rows []model.PanelRow) error {
	return writeFile(path, func(w io.Writer) error { return WritePanel(w, rows) })
}

// ReadPanel parses a panel CSV written by WritePanel.
func ReadPanel(r io.Reader) ([]model.PanelRow, error) {
	recs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "artifact: read panel")
	}
	if len(recs) == 0 {
		return nil, eris.New("artifact: empty panel file")
	}
	rows := make([]model.PanelRow, 0, len(recs)-1)
	for i, rec := range recs[1:] {
		if len(rec) != len(panelHeader) {
			return nil, eris.Errorf("artifact: panel line %d has %d fields", i+2, len(rec))
		}
		id, err1 := strconv.Atoi(rec[0])
		period, err2 := strconv.Atoi(rec[1])
		value, err3 := strconv.ParseInt(rec[2], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, eris.Errorf("artifact: panel line %d is malformed", i+2)
		}
		rows = append(rows, model.PanelRow{CellID: id, Period: period, Value: value, UnitType: model.UnitType(rec[3])})
	}
	return rows, nil
}

// WritePanelXLSX writes panel rows to a single-sheet workbook.
func WritePanelXLSX(path string, rows []model.PanelRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("panel")
	if err != nil {
		return eris.Wrap(err, "artifact: add sheet")
	}
	header := sheet.AddRow()
	for _, h := range panelHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.CellID)
		row.AddCell().SetInt(r.Period)
		row.AddCell().SetInt64(r.Value)
		row.AddCell().SetString(string(r.UnitType))
	}
	return eris.Wrapf(f.Save(path), "artifact: save %s", path)
}
