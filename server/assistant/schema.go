package assistant

import "github.com/yonder-travel/yonder/store"

// ToolSchema declares one callable action to the model.
type ToolSchema struct {
	Name        store.ActionKind
	Description string
	Parameters  map[string]any
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func numberProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// TripToolSchemas is the fixed set of actions the assistant may propose.
func TripToolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        store.ActionKindCreateExpense,
			Description: "Record an expense against the trip budget.",
			Parameters: objectSchema([]string{"name", "amount"}, map[string]any{
				"name":     stringProp("What the expense was for."),
				"amount":   numberProp("Amount in the trip currency unless currency is given."),
				"currency": stringProp("ISO 4217 currency code, optional."),
				"paidBy":   stringProp("Name of the participant who paid, optional."),
			}),
		},
		{
			Name:        store.ActionKindCreateActivity,
			Description: "Add an activity to the trip itinerary.",
			Parameters: objectSchema([]string{"name", "start"}, map[string]any{
				"name":        stringProp("Activity name."),
				"description": stringProp("Optional details."),
				"address":     stringProp("Optional location address."),
				"start":       stringProp("Start time, RFC 3339."),
				"end":         stringProp("End time, RFC 3339, optional."),
			}),
		},
		{
			Name:        store.ActionKindCreateTransportation,
			Description: "Add a transportation leg (flight, train, bus, car, ferry).",
			Parameters: objectSchema([]string{"type", "origin", "destination", "departure"}, map[string]any{
				"type":         stringProp("One of: flight, train, bus, car, ferry."),
				"origin":       stringProp("Departure place."),
				"destination":  stringProp("Arrival place."),
				"departure":    stringProp("Departure time, RFC 3339."),
				"arrival":      stringProp("Arrival time, RFC 3339, optional."),
				"confirmation": stringProp("Booking confirmation code, optional."),
			}),
		},
		{
			Name:        store.ActionKindCreateLodging,
			Description: "Add an accommodation (hotel, rental, hostel, camping).",
			Parameters: objectSchema([]string{"name", "checkIn", "checkOut"}, map[string]any{
				"type":         stringProp("One of: hotel, rental, hostel, camping."),
				"name":         stringProp("Property name."),
				"address":      stringProp("Optional address."),
				"checkIn":      stringProp("Check-in time, RFC 3339."),
				"checkOut":     stringProp("Check-out time, RFC 3339."),
				"confirmation": stringProp("Booking confirmation code, optional."),
			}),
		},
		{
			Name:        store.ActionKindCreateNote,
			Description: "Save a note on the trip.",
			Parameters: objectSchema([]string{"content"}, map[string]any{
				"title":   stringProp("Optional note title."),
				"content": stringProp("Note body."),
			}),
		},
		{
			Name:        store.ActionKindCreateChecklistItems,
			Description: "Add one or more items to the trip checklist.",
			Parameters: objectSchema([]string{"items"}, map[string]any{
				"items": map[string]any{
					"type":        "array",
					"description": "Checklist entries to add.",
					"items":       map[string]any{"type": "string"},
				},
			}),
		},
	}
}
