package render

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	gray  = &props.Color{Red: 110, Green: 110, Blue: 110}
	green = &props.Color{Red: 22, Green: 128, Blue: 61}
	amber = &props.Color{Red: 180, Green: 83, Blue: 9}
)

// emit writes each laid-out page as its own PDF page.
func emit(doc Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	for _, p := range doc.Pages {
		pg := page.New()
		for _, r := range p.Rows {
			pg.Add(rowsFor(r)...)
		}
		m.AddPages(pg)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func rowsFor(r Row) []core.Row {
	c := r.Cells
	switch r.Kind {
	case RowCompany:
		return []core.Row{
			row.New(r.Height).Add(
				col.New(8).Add(
					text.New(c[0], props.Text{Size: 16, Style: fontstyle.Bold}),
					text.New(c[1], props.Text{Top: 8, Size: 9, Color: gray}),
					text.New(c[2], props.Text{Top: 13, Size: 9, Color: gray}),
					text.New(c[3], props.Text{Top: 18, Size: 9, Color: gray}),
				),
				text.NewCol(4, "INVOICE", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Right}),
			),
		}
	case RowMeta:
		badge := props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Color: amber}
		if c[3] == "PAID" {
			badge.Color = green
		}
		return []core.Row{
			row.New(r.Height).Add(
				col.New(8).Add(
					text.New("Invoice number: "+c[0], props.Text{Size: 9}),
					text.New("Date created: "+c[1], props.Text{Top: 5, Size: 9}),
					text.New("Due date: "+c[2], props.Text{Top: 10, Size: 9}),
				),
				col.New(4).Add(
					text.New(c[3], badge),
					text.New("Paid: "+c[4], props.Text{Top: 6, Size: 9, Align: align.Right}),
				),
			),
		}
	case RowBillTo:
		return []core.Row{
			row.New(r.Height).Add(
				col.New(12).Add(
					text.New("Bill to", props.Text{Size: 10, Style: fontstyle.Bold}),
					text.New(c[0], props.Text{Top: 5, Size: 9}),
					text.New(c[1], props.Text{Top: 10, Size: 9}),
					text.New(c[2], props.Text{Top: 15, Size: 9}),
				),
			),
		}
	case RowTerms:
		return []core.Row{
			row.New(r.Height).Add(
				text.NewCol(3, "Payment terms", props.Text{Size: 9, Style: fontstyle.Bold}),
				text.NewCol(9, c[0], props.Text{Size: 9}),
			),
		}
	case RowTableHeader:
		return []core.Row{
			row.New(r.Height - 1).Add(tableCols(c, fontstyle.Bold)...),
			line.NewRow(1),
		}
	case RowItem:
		return []core.Row{row.New(r.Height).Add(tableCols(c, fontstyle.Normal)...)}
	case RowTotals:
		return []core.Row{
			row.New(r.Height/2).Add(
				col.New(8),
				text.NewCol(2, "Subtotal", props.Text{Size: 9}),
				text.NewCol(2, c[0], props.Text{Size: 9, Align: align.Right}),
			),
			row.New(r.Height/2).Add(
				col.New(8),
				text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
				text.NewCol(2, c[1], props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			),
		}
	case RowInstructions:
		return []core.Row{
			row.New(r.Height).Add(
				col.New(12).Add(
					text.New(c[0], props.Text{Top: 4, Size: 9, Style: fontstyle.Bold}),
					text.New(c[1], props.Text{Top: 9, Size: 8, Color: gray}),
				),
			),
		}
	default:
		return nil
	}
}

// tableCols sizes the six load columns on maroto's 12-unit grid.
func tableCols(cells []string, style fontstyle.Type) []core.Col {
	sizes := []int{2, 2, 2, 2, 2, 2}
	cols := make([]core.Col, 0, len(cells))
	for i, v := range cells {
		p := props.Text{Size: 8, Style: style}
		if i == len(cells)-1 {
			p.Align = align.Right
		}
		cols = append(cols, text.NewCol(sizes[i], v, p))
	}
	return cols
}
