// Package escpos renders a receipt into an ESC/POS command buffer for an
// 80mm thermal printer (48 printable columns). It is a pure translation
// step with no device state.
package escpos

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/printrelay/printrelay/internal/jobs"
)

const DefaultWidth = 48

// ESC/POS command sequences.
var (
	cmdInit        = []byte{0x1b, 0x40}             // ESC @
	cmdAlignLeft   = []byte{0x1b, 0x61, 0x00}       // ESC a 0
	cmdAlignCenter = []byte{0x1b, 0x61, 0x01}       // ESC a 1
	cmdFeedAndCut  = []byte{0x1d, 0x56, 0x42, 0x03} // GS V B n: feed n, full cut
)

// Encoder holds the static receipt chrome. The zero value renders a bare
// receipt at the default width.
type Encoder struct {
	Width  int
	Header []string
	Footer []string
}

func New(width int, header, footer []string) *Encoder {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Encoder{Width: width, Header: header, Footer: footer}
}

// Encode turns a receipt into the raw bytes to send to the printer.
func (e *Encoder) Encode(r *jobs.Receipt) ([]byte, error) {
	if r == nil {
		return nil, jobs.ErrEmptyReceipt
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	width := e.Width
	if width <= 0 {
		width = DefaultWidth
	}
	rule := strings.Repeat("-", width) + "\n"

	var buf bytes.Buffer
	buf.Write(cmdInit)

	buf.Write(cmdAlignCenter)
	for _, line := range e.Header {
		buf.WriteString(line + "\n")
	}
	buf.WriteString(rule)

	buf.Write(cmdAlignLeft)
	buf.WriteString(spread("DESCRIZIONE", "EURO", width))
	for _, pi := range r.Items {
		right := fmt.Sprintf("%dx %s", pi.Quantity, FormatPrice(pi.Item.Price))
		buf.WriteString(spread(pi.Item.Name, right, width))
	}

	buf.WriteString(rule)
	buf.WriteString(spread("TOTALE COMPLESSIVO", FormatPrice(r.Total), width))
	buf.WriteString(spread(r.PaymentMethod, FormatPrice(r.GivenAmount), width))
	if r.Change != nil {
		buf.WriteString(spread("Resto", FormatPrice(*r.Change), width))
	}

	buf.Write(cmdAlignCenter)
	buf.WriteString("\n" + r.PurchaseDate + "\n")
	buf.WriteString(fmt.Sprintf("ID Acquisto: #%04d\n", r.PurchaseID))
	buf.WriteString("*NON FISCALE*\n")
	for _, line := range e.Footer {
		buf.WriteString(line + "\n")
	}

	buf.Write(cmdFeedAndCut)
	return buf.Bytes(), nil
}

// spread lays left and right on one line with the space between them
// padded out to width. Widths are measured in runes, not bytes: item
// names are Italian and accented characters must not shift the price
// column. If the sides do not fit, they are joined with a single space
// and truncated on a rune boundary.
func spread(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		joined := left + " " + right
		if r := []rune(joined); len(r) > width {
			joined = string(r[:width])
		}
		return joined + "\n"
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

// FormatPrice renders an amount with a comma decimal separator and the
// EUR suffix, matching the backend's receipts.
func FormatPrice(p jobs.Price) string {
	return strings.Replace(fmt.Sprintf("%.2f EUR", float64(p)), ".", ",", 1)
}
