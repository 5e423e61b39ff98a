package export

import (
	"bytes"
	"testing"

	"go-firestore-admin/internal/model"
	"go-firestore-admin/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteProducts(t *testing.T) {
	products := []model.Product{
		{Id: "1", Name: "Widget", Category: "Tools", Price: decimal.RequireFromString("9.5"), Stock: 3, Sales: 7,
			ImgUrl: utils.StringToPointer("https://cdn.example.com/w.png")},
		{Id: "2", Name: "Gadget", Category: "Home", Price: decimal.NewFromInt(12), Stock: 0, Sales: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProducts(&buf, products))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Name", "Category", "Price", "Stock", "Sales", "Image URL"}, rows[0])
	assert.Equal(t, []string{"1", "Widget", "Tools", "9.5", "3", "7", "https://cdn.example.com/w.png"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 6)
	assert.Equal(t, []string{"2", "Gadget", "Home", "12", "0", "1"}, rows[2][:6])
}
