// Package export renders the product table as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"go-firestore-admin/internal/model"
	"go-firestore-admin/internal/utils"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Products"

var header = []interface{}{"ID", "Name", "Category", "Price", "Stock", "Sales", "Image URL"}

// WriteProducts writes products to w as an xlsx workbook, one row per product after a header row.
func WriteProducts(w io.Writer, products []model.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, p := range products {
		row := []interface{}{p.Id, p.Name, p.Category, p.Price.InexactFloat64(), p.Stock, p.Sales, utils.StringValue(p.ImgUrl)}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write product %s: %w", p.Id, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "G", 18); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
