package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyReceipt    = errors.New("receipt has no purchased items")
	ErrInvalidQuantity = errors.New("purchased item quantity must be positive")
	ErrMissingItemName = errors.New("purchased item name is required")
)

// Receipt mirrors the purchase event emitted by the backend. It is the
// opaque payload of a PrintJob: created once at ingress and consumed only
// by the command encoder.
type Receipt struct {
	PurchaseID    int64           `json:"id"`
	Items         []PurchasedItem `json:"purchasedItems"`
	Total         Price           `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	GivenAmount   Price           `json:"givenAmount"`
	Change        *Price          `json:"change,omitempty"`
	PurchaseDate  string          `json:"purchaseDate"`
}

type PurchasedItem struct {
	Item     Item `json:"item"`
	Quantity int  `json:"quantity"`
}

type Item struct {
	Name  string `json:"name"`
	Price Price  `json:"price"`
}

// Price is an amount in euro. The backend is inconsistent about encoding:
// some events carry numbers, others strings with a comma decimal separator.
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", s, err)
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Price(f)
	return nil
}

// ParseReceipt decodes and validates a purchase event payload. A non-nil
// error means the event cannot become a well-formed job and must be
// dropped at ingress.
func ParseReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode purchase event: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the invariants the encoder relies on.
func (r *Receipt) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyReceipt
	}
	for _, pi := range r.Items {
		if pi.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has quantity %d", ErrInvalidQuantity, pi.Item.Name, pi.Quantity)
		}
		if strings.TrimSpace(pi.Item.Name) == "" {
			return ErrMissingItemName
		}
	}
	return nil
}
