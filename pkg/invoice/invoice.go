package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Line is a single purchased position on the invoice.
type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Document carries everything needed to render an order invoice.
type Document struct {
	OrderID       string
	OrderDate     time.Time
	Status        string
	CustomerName  string
	CustomerEmail string
	Lines         []Line
	Total         decimal.Decimal
}

// Renderer produces PDF invoices.
type Renderer struct {
	sellerName string
}

func NewRenderer(sellerName string) *Renderer {
	if sellerName == "" {
		sellerName = "GPUForge Store"
	}
	return &Renderer{sellerName: sellerName}
}

// Render returns the invoice as PDF bytes.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if doc.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	if len(doc.Lines) == 0 {
		return nil, fmt.Errorf("invoice needs at least one line")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", doc.OrderID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, r.sellerName)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice for order %s", doc.OrderID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Order date: %s", doc.OrderDate.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", doc.Status))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Billed to: %s <%s>", doc.CustomerName, doc.CustomerEmail))
	pdf.Ln(10)

	// table header
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		pdf.CellFormat(90, 8, line.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, line.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, line.LineTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(145, 9, "Order total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 9, doc.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
