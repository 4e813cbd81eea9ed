package action

import (
	"context"
	"strings"
	"time"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
)

// Argument shapes mirror the tool schemas handed to the assistant. Times
// arrive as RFC 3339 strings and are stored as unix seconds.

type ExpenseArgs struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	PaidBy   string  `json:"paidBy"`
}

type ActivityArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type TransportationArgs struct {
	Type         string `json:"type"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Confirmation string `json:"confirmation"`
}

type LodgingArgs struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	CheckIn      string `json:"checkIn"`
	CheckOut     string `json:"checkOut"`
	Confirmation string `json:"confirmation"`
}

type NoteArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ChecklistArgs struct {
	Items []string `json:"items"`
}

// StoreDispatcher creates trip rows directly against the store, scoped to
// one trip.
type StoreDispatcher struct {
	store  *store.Store
	tripID int32
}

// NewStoreDispatcher creates a dispatcher for the given trip.
func NewStoreDispatcher(s *store.Store, tripID int32) *StoreDispatcher {
	return &StoreDispatcher{store: s, tripID: tripID}
}

func (d *StoreDispatcher) CreateExpense(ctx context.Context, args *ExpenseArgs) error {
	if args.Name == "" {
		return cerr.InvalidArgument("expense name is required")
	}
	currency := args.Currency
	if currency == "" {
		trip, err := d.store.GetTrip(ctx, &store.FindTrip{ID: &d.tripID})
		if err != nil {
			return cerr.WriteFailed("failed to load trip", err)
		}
		if trip != nil {
			currency = trip.Currency
		}
	}
	_, err := d.store.CreateExpense(ctx, &store.Expense{
		TripID:    d.tripID,
		Name:      args.Name,
		Amount:    args.Amount,
		Currency:  currency,
		PaidBy:    args.PaidBy,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to create expense", err)
	}
	return nil
}

func (d *StoreDispatcher) CreateActivity(ctx context.Context, args *ActivityArgs) error {
	if args.Name == "" {
		return cerr.InvalidArgument("activity name is required")
	}
	startTs, err := parseTs(args.Start)
	if err != nil {
		return cerr.InvalidArgument("malformed activity start time")
	}
	endTs, err := parseTs(args.End)
	if err != nil {
		return cerr.InvalidArgument("malformed activity end time")
	}
	_, err = d.store.CreateActivity(ctx, &store.Activity{
		TripID:      d.tripID,
		Name:        args.Name,
		Description: args.Description,
		Address:     args.Address,
		StartTs:     startTs,
		EndTs:       endTs,
		CreatedTs:   time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to create activity", err)
	}
	return nil
}

func (d *StoreDispatcher) CreateTransportation(ctx context.Context, args *TransportationArgs) error {
	if args.Origin == "" || args.Destination == "" {
		return cerr.InvalidArgument("transportation origin and destination are required")
	}
	departureTs, err := parseTs(args.Departure)
	if err != nil {
		return cerr.InvalidArgument("malformed departure time")
	}
	arrivalTs, err := parseTs(args.Arrival)
	if err != nil {
		return cerr.InvalidArgument("malformed arrival time")
	}
	_, err = d.store.CreateTransportation(ctx, &store.Transportation{
		TripID:       d.tripID,
		Type:         strings.ToLower(args.Type),
		Origin:       args.Origin,
		Destination:  args.Destination,
		DepartureTs:  departureTs,
		ArrivalTs:    arrivalTs,
		Confirmation: args.Confirmation,
		CreatedTs:    time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to create transportation", err)
	}
	return nil
}

func (d *StoreDispatcher) CreateLodging(ctx context.Context, args *LodgingArgs) error {
	if args.Name == "" {
		return cerr.InvalidArgument("lodging name is required")
	}
	checkInTs, err := parseTs(args.CheckIn)
	if err != nil {
		return cerr.InvalidArgument("malformed check-in time")
	}
	checkOutTs, err := parseTs(args.CheckOut)
	if err != nil {
		return cerr.InvalidArgument("malformed check-out time")
	}
	_, err = d.store.CreateLodging(ctx, &store.Lodging{
		TripID:       d.tripID,
		Type:         strings.ToLower(args.Type),
		Name:         args.Name,
		Address:      args.Address,
		CheckInTs:    checkInTs,
		CheckOutTs:   checkOutTs,
		Confirmation: args.Confirmation,
		CreatedTs:    time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to create lodging", err)
	}
	return nil
}

func (d *StoreDispatcher) CreateNote(ctx context.Context, args *NoteArgs) error {
	if args.Content == "" {
		return cerr.InvalidArgument("note content is required")
	}
	_, err := d.store.CreateNote(ctx, &store.Note{
		TripID:    d.tripID,
		Title:     args.Title,
		Content:   args.Content,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to create note", err)
	}
	return nil
}

func (d *StoreDispatcher) CreateChecklistItems(ctx context.Context, args *ChecklistArgs) error {
	if len(args.Items) == 0 {
		return cerr.InvalidArgument("checklist items are required")
	}
	for _, text := range args.Items {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := d.store.CreateChecklistItem(ctx, &store.ChecklistItem{
			TripID:    d.tripID,
			Text:      text,
			CreatedTs: time.Now().Unix(),
		}); err != nil {
			return cerr.WriteFailed("failed to create checklist item", err)
		}
	}
	return nil
}

// parseTs accepts RFC 3339 timestamps and bare dates; empty means unset.
func parseTs(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
