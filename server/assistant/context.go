package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/yonder-travel/yonder/store"
)

// tripContext is the JSON block describing the current trip state, injected
// ahead of the transcript so replies stay grounded in actual plans.
type tripContext struct {
	Trip            tripSummary             `json:"trip"`
	Expenses        []expenseSummary        `json:"expenses,omitempty"`
	Transportations []transportationSummary `json:"transportations,omitempty"`
	Lodgings        []lodgingSummary        `json:"lodgings,omitempty"`
	Activities      []activitySummary       `json:"activities,omitempty"`
	Notes           []noteSummary           `json:"notes,omitempty"`
	Checklist       []string                `json:"checklist,omitempty"`
	GeneratedAt     string                  `json:"generatedAt"`
}

type tripSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

type expenseSummary struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	PaidBy   string  `json:"paidBy,omitempty"`
}

type transportationSummary struct {
	Type        string `json:"type"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Departure   string `json:"departure"`
	Arrival     string `json:"arrival,omitempty"`
}

type lodgingSummary struct {
	Type     string `json:"type,omitempty"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type activitySummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
}

type noteSummary struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// BuildTripContext assembles the trip context block from the store.
// Returns an empty string when the trip does not exist.
func BuildTripContext(ctx context.Context, s *store.Store, tripID int32) (string, error) {
	trip, err := s.GetTrip(ctx, &store.FindTrip{ID: &tripID})
	if err != nil {
		return "", err
	}
	if trip == nil {
		return "", nil
	}

	find := &store.FindTripItems{TripID: tripID}
	expenses, err := s.ListExpenses(ctx, find)
	if err != nil {
		return "", err
	}
	transportations, err := s.ListTransportations(ctx, find)
	if err != nil {
		return "", err
	}
	lodgings, err := s.ListLodgings(ctx, find)
	if err != nil {
		return "", err
	}
	activities, err := s.ListActivities(ctx, find)
	if err != nil {
		return "", err
	}
	notes, err := s.ListNotes(ctx, find)
	if err != nil {
		return "", err
	}
	checklist, err := s.ListChecklistItems(ctx, find)
	if err != nil {
		return "", err
	}

	tc := &tripContext{
		Trip: tripSummary{
			Name:        trip.Name,
			Description: trip.Description,
			Currency:    trip.Currency,
			StartDate:   formatTs(trip.StartTs),
			EndDate:     formatTs(trip.EndTs),
		},
		Expenses: lo.Map(expenses, func(e *store.Expense, _ int) expenseSummary {
			return expenseSummary{Name: e.Name, Amount: e.Amount, Currency: e.Currency, PaidBy: e.PaidBy}
		}),
		Transportations: lo.Map(transportations, func(t *store.Transportation, _ int) transportationSummary {
			return transportationSummary{
				Type:        t.Type,
				Origin:      t.Origin,
				Destination: t.Destination,
				Departure:   formatTs(t.DepartureTs),
				Arrival:     formatTs(t.ArrivalTs),
			}
		}),
		Lodgings: lo.Map(lodgings, func(l *store.Lodging, _ int) lodgingSummary {
			return lodgingSummary{
				Type:     l.Type,
				Name:     l.Name,
				Address:  l.Address,
				CheckIn:  formatTs(l.CheckInTs),
				CheckOut: formatTs(l.CheckOutTs),
			}
		}),
		Activities: lo.Map(activities, func(a *store.Activity, _ int) activitySummary {
			return activitySummary{
				Name:        a.Name,
				Description: a.Description,
				Address:     a.Address,
				Start:       formatTs(a.StartTs),
				End:         formatTs(a.EndTs),
			}
		}),
		Notes: lo.Map(notes, func(n *store.Note, _ int) noteSummary {
			return noteSummary{Title: n.Title, Content: n.Content}
		}),
		Checklist: lo.Map(checklist, func(c *store.ChecklistItem, _ int) string {
			return c.Text
		}),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatTs(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
