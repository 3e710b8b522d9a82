package escpos

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printrelay/printrelay/internal/jobs"
)

func sampleReceipt() *jobs.Receipt {
	change := jobs.Price(1.5)
	return &jobs.Receipt{
		PurchaseID: 42,
		Items: []jobs.PurchasedItem{
			{Item: jobs.Item{Name: "Caffe", Price: 1.20}, Quantity: 2},
			{Item: jobs.Item{Name: "Cornetto", Price: 1.10}, Quantity: 1},
		},
		Total:         3.50,
		PaymentMethod: "CONTANTI",
		GivenAmount:   5.00,
		Change:        &change,
		PurchaseDate:  "01/03/2026 10:15",
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name  string
		price jobs.Price
		want  string
	}{
		{"whole", 5, "5,00 EUR"},
		{"cents", 1.2, "1,20 EUR"},
		{"rounding", 3.499, "3,50 EUR"},
		{"zero", 0, "0,00 EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.price))
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	e := New(48, []string{"Kino Cafe"}, []string{"Grazie e arrivederci!"})

	raw, err := e.Encode(sampleReceipt())
	require.NoError(t, err)
	out := string(raw)

	assert.True(t, strings.HasPrefix(out, "\x1b@"), "buffer starts with ESC @ init")
	assert.True(t, strings.HasSuffix(out, "\x1dVB\x03"), "buffer ends with feed and cut")

	assert.Contains(t, out, "Kino Cafe\n")
	assert.Contains(t, out, "Grazie e arrivederci!\n")
	assert.Contains(t, out, "ID Acquisto: #0042\n")
	assert.Contains(t, out, "*NON FISCALE*\n")
	assert.Contains(t, out, "01/03/2026 10:15\n")

	// Item lines spread name and price to the full width.
	assert.Contains(t, out, "Caffe")
	assert.Contains(t, out, "2x 1,20 EUR\n")
	assert.Contains(t, out, "TOTALE COMPLESSIVO")
	assert.Contains(t, out, "3,50 EUR\n")
	assert.Contains(t, out, "CONTANTI")
	assert.Contains(t, out, "Resto")
	assert.Contains(t, out, "1,50 EUR\n")
}

func TestEncodeLineWidth(t *testing.T) {
	e := New(48, nil, nil)
	raw, err := e.Encode(sampleReceipt())
	require.NoError(t, err)

	line := "Caffe"
	for _, l := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(l, line) {
			assert.Len(t, l, 48, "item line padded to full width")
			return
		}
	}
	t.Fatal("item line not found")
}

func TestSpreadCountsRunesNotBytes(t *testing.T) {
	// Accented names are the norm on these receipts; the price column
	// must not drift when a rune is more than one byte.
	for _, name := range []string{"Caffè", "Tè freddo", "Più gusti"} {
		line := strings.TrimSuffix(spread(name, "2x 1,20 EUR", 48), "\n")
		assert.Equal(t, 48, utf8.RuneCountInString(line), "line width for %q", name)
		assert.True(t, strings.HasSuffix(line, "2x 1,20 EUR"), "price column for %q", name)
	}
}

func TestSpreadTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("è", 60)
	line := strings.TrimSuffix(spread(long, "1x 1,00 EUR", 48), "\n")
	assert.Equal(t, 48, utf8.RuneCountInString(line))
	assert.True(t, utf8.ValidString(line), "truncation must not split a rune")
}

func TestEncodeNoChangeLine(t *testing.T) {
	r := sampleReceipt()
	r.Change = nil

	e := New(48, nil, nil)
	raw, err := e.Encode(r)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Resto")
}

func TestEncodeOverflowingLineTruncated(t *testing.T) {
	r := sampleReceipt()
	r.Items[0].Item.Name = strings.Repeat("X", 60)

	e := New(48, nil, nil)
	raw, err := e.Encode(r)
	require.NoError(t, err)

	for _, l := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(l, "XXX") {
			assert.LessOrEqual(t, len(l), 48)
			return
		}
	}
	t.Fatal("overflowing line not found")
}

func TestEncodeRejectsInvalidReceipt(t *testing.T) {
	e := New(48, nil, nil)

	_, err := e.Encode(nil)
	assert.Error(t, err)

	_, err = e.Encode(&jobs.Receipt{})
	assert.ErrorIs(t, err, jobs.ErrEmptyReceipt)
}
