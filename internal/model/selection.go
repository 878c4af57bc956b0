package model

import "fmt"

// SelectionKind tags a dinner selection variant.
type SelectionKind string

const (
	SelectionSalad   SelectionKind = "salad"
	SelectionEntree  SelectionKind = "entree"
	SelectionDessert SelectionKind = "dessert"
	SelectionWine    SelectionKind = "wine"
)

// Selection is one food or wine choice attached to a hold or booking.
// Selections arrive from untrusted callers and are validated at the
// boundary before they are stored.
type Selection struct {
	Kind     SelectionKind `json:"kind"`
	ItemID   uint64        `json:"item_id"`
	Quantity uint32        `json:"quantity"`
}

// Validate checks the variant tag and the quantity bounds.
func (s Selection) Validate() error {
	switch s.Kind {
	case SelectionSalad, SelectionEntree, SelectionDessert, SelectionWine:
	default:
		return fmt.Errorf("unknown selection kind %q", s.Kind)
	}
	if s.ItemID == 0 {
		return fmt.Errorf("selection %s: item id required", s.Kind)
	}
	if s.Quantity == 0 {
		return fmt.Errorf("selection %s: quantity must be positive", s.Kind)
	}
	return nil
}

// ValidateSelections validates every element and reports the first problem.
func ValidateSelections(sels []Selection) error {
	for i, s := range sels {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("selection %d: %w", i, err)
		}
	}
	return nil
}
