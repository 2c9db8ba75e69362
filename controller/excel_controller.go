package controller

import (
	"fmt"
	"net/http"
	"strings"

	"coffeewifi/model"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	exportSheet = "Cafes"
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUpload   = 5 << 20
)

// Columns of the import/export spreadsheet, in order.
var sheetColumns = []string{
	"name", "map_url", "img_url", "location", "seats",
	"has_toilet", "has_wifi", "has_sockets", "can_take_calls",
	"coffee_price", "open_time", "close_time",
}

// ImportCafes bulk-inserts cafes from an uploaded .xlsx file.
func (ctl *CafeController) ImportCafes(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": "Excel file is required"}})
		return
	}
	if fileHeader.Size > maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": "Excel file exceeds 5MB limit"}})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctl.internalError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	xl, err := excelize.OpenReader(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": "Failed to parse Excel file"}})
		return
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": "Excel file has no sheets"}})
		return
	}
	rows, err := xl.GetRows(sheets[0])
	if err != nil || len(rows) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"Bad Request": "Excel must have at least one row of data"}})
		return
	}

	var cafes []model.Cafe
	invalid := 0
	for i, row := range rows[1:] {
		cafe, err := cafeFromRow(row)
		if err != nil {
			ctl.log.Debug("skipping spreadsheet row", zap.Int("row", i+2), zap.Error(err))
			invalid++
			continue
		}
		cafes = append(cafes, cafe)
	}

	imported, duplicates, err := ctl.store.CreateMany(c.Request.Context(), cafes)
	if err != nil {
		ctl.internalError(c, err)
		return
	}
	if imported > 0 {
		ctl.invalidate(c)
	}
	ctl.log.Info("cafes imported", zap.Int("imported", imported), zap.Int("skipped", invalid+duplicates))

	c.JSON(http.StatusOK, gin.H{
		"response": gin.H{"Success": fmt.Sprintf("Successfully imported %d cafes.", imported)},
		"imported": imported,
		"skipped":  invalid + duplicates,
	})
}

// ExportCafes writes every cafe to an .xlsx attachment.
func (ctl *CafeController) ExportCafes(c *gin.Context) {
	cafes, err := ctl.store.All(c.Request.Context())
	if err != nil {
		ctl.internalError(c, err)
		return
	}

	xl := excelize.NewFile()
	defer xl.Close()
	if err := xl.SetSheetName("Sheet1", exportSheet); err != nil {
		ctl.internalError(c, err)
		return
	}

	header := make([]interface{}, len(sheetColumns))
	for i, col := range sheetColumns {
		header[i] = col
	}
	if err := xl.SetSheetRow(exportSheet, "A1", &header); err != nil {
		ctl.internalError(c, err)
		return
	}
	for i, cafe := range cafes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			ctl.internalError(c, err)
			return
		}
		row := cafeToRow(cafe)
		if err := xl.SetSheetRow(exportSheet, cell, &row); err != nil {
			ctl.internalError(c, err)
			return
		}
	}

	c.Header("Content-Disposition", `attachment; filename="cafes.xlsx"`)
	c.Header("Content-Type", xlsxMIME)
	c.Status(http.StatusOK)
	if err := xl.Write(c.Writer); err != nil {
		ctl.log.Error("write spreadsheet", zap.Error(err))
	}
}

func cafeFromRow(row []string) (model.Cafe, error) {
	// Trailing empty cells are trimmed by excelize.
	if len(row) < len(sheetColumns) {
		return model.Cafe{}, fmt.Errorf("incomplete row: %d of %d columns", len(row), len(sheetColumns))
	}
	cells := make([]string, len(sheetColumns))
	for i := range cells {
		cells[i] = strings.TrimSpace(row[i])
	}
	for i, v := range cells {
		if v == "" && sheetColumns[i] != "coffee_price" {
			return model.Cafe{}, fmt.Errorf("column %s is empty", sheetColumns[i])
		}
	}

	var flags [4]model.Flag
	for i := range flags {
		f, err := model.ParseFlag(cells[5+i])
		if err != nil {
			return model.Cafe{}, fmt.Errorf("column %s: %w", sheetColumns[5+i], err)
		}
		flags[i] = f
	}

	cafe := model.Cafe{
		Name:         cells[0],
		MapURL:       cells[1],
		ImgURL:       cells[2],
		Location:     cells[3],
		Seats:        cells[4],
		HasToilet:    bool(flags[0]),
		HasWifi:      bool(flags[1]),
		HasSockets:   bool(flags[2]),
		CanTakeCalls: bool(flags[3]),
		OpenTime:     cells[10],
		CloseTime:    cells[11],
	}
	if cells[9] != "" {
		price := cells[9]
		cafe.CoffeePrice = &price
	}
	return cafe, nil
}

func cafeToRow(cafe model.Cafe) []interface{} {
	price := ""
	if cafe.CoffeePrice != nil {
		price = *cafe.CoffeePrice
	}
	return []interface{}{
		cafe.Name, cafe.MapURL, cafe.ImgURL, cafe.Location, cafe.Seats,
		flagString(cafe.HasToilet), flagString(cafe.HasWifi),
		flagString(cafe.HasSockets), flagString(cafe.CanTakeCalls),
		price, cafe.OpenTime, cafe.CloseTime,
	}
}

func flagString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
