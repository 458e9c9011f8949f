package journal

import (
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// exportHeader is the column layout of the spreadsheet handed to the sales
// team for re-keying leads.
var exportHeader = []string{
	"Data", "Sistema", "Erro", "Tipo", "Nome", "Email", "Telefone", "Cidade",
	"Estado", "Interesse", "Investimento", "Região", "Loja", "Mensagem", "Origem", "Card Pipefy",
}

// ExportXLSX writes entries as a single-sheet workbook.
func ExportXLSX(w io.Writer, entries []Entry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "journal: add sheet")
	}

	addRow(sheet, exportHeader)
	for _, e := range entries {
		addRow(sheet, exportRow(e))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "journal: write xlsx")
	}
	return nil
}

func exportRow(e Entry) []string {
	store := ""
	if e.StoreID != nil {
		store = strconv.Itoa(*e.StoreID)
	}
	card := ""
	if e.CRMCardID != nil {
		card = *e.CRMCardID
	}
	l := e.Lead
	return []string{
		e.CreatedAt.In(time.UTC).Format(time.RFC3339),
		e.Upstream,
		e.Error,
		e.ErrorKind,
		l.Name,
		l.Email,
		l.Phone,
		l.City,
		l.State,
		l.Interests.Joined(),
		l.InvestmentRange,
		l.StoreRegionLabel,
		store,
		l.MessageText(),
		l.Origin,
		card,
	}
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
