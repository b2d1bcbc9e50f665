package proc

import (
	"encoding/json"
	"fmt"

	"slicehouse/pkg/errors"
)

// Valid order channels for incoming payloads.
var validChannels = map[string]bool{
	"DINE_IN": true, "TAKEOUT": true, "DELIVERY": true, "ONLINE": true,
}

// PayloadResult is the outcome of validating one order payload.
type PayloadResult struct {
	Valid  bool
	Issues []string
}

type orderPayload struct {
	CustomerID *int          `json:"customer_id"`
	LocationID *int          `json:"location_id"`
	Channel    string        `json:"channel"`
	Items      []itemPayload `json:"items"`
}

type itemPayload struct {
	MenuItemID *int `json:"menu_item_id"`
	Quantity   *int `json:"quantity"`
}

// ValidateOrderPayload checks an incoming JSON order for required fields and
// value ranges. Malformed JSON is an error; a well-formed but invalid payload
// returns Valid=false with the issue list.
func ValidateOrderPayload(data []byte) (*PayloadResult, error) {
	var p orderPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "order payload is not valid JSON")
	}

	res := &PayloadResult{}
	addIssue := func(format string, args ...interface{}) {
		res.Issues = append(res.Issues, fmt.Sprintf(format, args...))
	}

	if p.CustomerID == nil {
		addIssue("customer_id is required")
	} else if *p.CustomerID <= 0 {
		addIssue("customer_id must be positive, got %d", *p.CustomerID)
	}
	if p.LocationID == nil {
		addIssue("location_id is required")
	} else if *p.LocationID <= 0 {
		addIssue("location_id must be positive, got %d", *p.LocationID)
	}
	if p.Channel == "" {
		addIssue("channel is required")
	} else if !validChannels[p.Channel] {
		addIssue("channel %q is not one of DINE_IN, TAKEOUT, DELIVERY, ONLINE", p.Channel)
	}
	if len(p.Items) == 0 {
		addIssue("items must be a non-empty array")
	}
	for i, it := range p.Items {
		if it.MenuItemID == nil {
			addIssue("items[%d].menu_item_id is required", i)
		} else if *it.MenuItemID <= 0 {
			addIssue("items[%d].menu_item_id must be positive", i)
		}
		if it.Quantity == nil {
			addIssue("items[%d].quantity is required", i)
		} else if *it.Quantity < 1 || *it.Quantity > 20 {
			addIssue("items[%d].quantity must be in [1,20], got %d", i, *it.Quantity)
		}
	}

	res.Valid = len(res.Issues) == 0
	return res, nil
}
