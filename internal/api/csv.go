package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"

	"github.com/mmynk/dailyexpenses/internal/models"
)

const totalLabel = "TOTAL"

func (m money) balanceSheetRows(s models.BalanceSheet) [][]string {
	cats := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	rows := make([][]string, 0, len(cats)+1)
	for _, c := range cats {
		rows = append(rows, []string{s.OwnerID, c, m.format(s.Categories[c])})
	}
	return append(rows, []string{s.OwnerID, totalLabel, m.format(s.TotalSpent)})
}

// overallRows lists every user's sheet ordered by user ID, followed by a
// grand total row with an empty owner_id.
func (m money) overallRows(o models.OverallBalanceSheet) [][]string {
	ids := make([]string, 0, len(o.BalanceSheets))
	for id := range o.BalanceSheets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows [][]string
	for _, id := range ids {
		rows = append(rows, m.balanceSheetRows(o.BalanceSheets[id])...)
	}
	return append(rows, []string{"", totalLabel, m.format(o.TotalSpent)})
}

func writeCSV(w http.ResponseWriter, filename string, rows [][]string) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"owner_id", "category", "total"}); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
