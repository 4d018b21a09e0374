package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		OrderID:       "7b0ad56e-5a24-4f3e-a2ab-43cd55b6ea4f",
		OrderDate:     time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Status:        "pending",
		CustomerName:  "testcustomer",
		CustomerEmail: "customer@example.com",
		Lines: []Line{
			{
				Name:      "GeForce RTX 4070 SUPER",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("599.99"),
				LineTotal: decimal.RequireFromString("1199.98"),
			},
			{
				Name:      "Radeon RX 7800 XT",
				Quantity:  1,
				UnitPrice: decimal.RequireFromString("509.99"),
				LineTotal: decimal.RequireFromString("509.99"),
			},
		},
		Total: decimal.RequireFromString("1709.97"),
	}
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := NewRenderer("GPUForge Store").Render(sampleDocument())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderRejectsEmptyDocument(t *testing.T) {
	r := NewRenderer("")

	doc := sampleDocument()
	doc.OrderID = ""
	_, err := r.Render(doc)
	assert.Error(t, err)

	doc = sampleDocument()
	doc.Lines = nil
	_, err = r.Render(doc)
	assert.Error(t, err)
}
