// Package report exports invoice lists as spreadsheets.
package report

import (
	"fmt"

	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02"

var invoiceHeadings = []interface{}{
	"Invoice Number", "Customer", "Created", "Due", "Loads", "Total", "Status", "Paid Date",
}

// InvoicesXLSX writes one row per invoice on a sheet named sheet.
func InvoicesXLSX(sheet string, invoices []invoicedomain.InvoiceWithDetails) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &invoiceHeadings); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", bold); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	for i, inv := range invoices {
		rowNo := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return nil, err
		}

		customer, due, status, paid := "", "", "Outstanding", ""
		if inv.Customer != nil {
			customer = inv.Customer.Name
		}
		if inv.DueDate != nil {
			due = inv.DueDate.Format(dateLayout)
		}
		if inv.IsPaid {
			status = "Paid"
			if inv.PaidDate != nil {
				paid = inv.PaidDate.Format(dateLayout)
			}
		}

		row := []interface{}{
			inv.DisplayNumber(),
			customer,
			inv.DateCreated.Format(dateLayout),
			due,
			len(inv.Loads),
			inv.Total().InexactFloat64(),
			status,
			paid,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
		totalCell := fmt.Sprintf("F%d", rowNo)
		if err := f.SetCellStyle(sheet, totalCell, totalCell, money); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(sheet, "A", "H", 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
