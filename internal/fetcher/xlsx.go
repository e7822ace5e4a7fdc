package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects which sheet to read. An empty Sheet means the first.
type XLSXOptions struct {
	Sheet string
}

// ReadXLSX reads one sheet of a workbook into rows of cell strings. Rows
// keep their sheet order; callers decide what counts as a header.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	book, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheet, err := pickSheet(book, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// pickSheet resolves a sheet by name, falling back to the first sheet of
// the workbook when no name is given.
func pickSheet(book *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(book.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		return book.Sheets[0], nil
	}
	sheet, ok := book.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	return sheet, nil
}
