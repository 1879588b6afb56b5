package types

import "strings"

// Address is the immutable address snapshot copied onto an order at creation.
// Later edits to the customer's saved addresses never touch order history.
type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// Validate reports whether the snapshot carries the minimum shippable fields.
func (a Address) Validate() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Pincode) != ""
}
