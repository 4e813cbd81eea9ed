// Package ical renders a trip itinerary as an iCalendar feed so plans can be
// subscribed to from any calendar app.
package ical

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"

	"github.com/yonder-travel/yonder/store"
)

// BuildTripCalendar renders the trip's activities, transportation legs, and
// lodgings as VEVENTs. Items without a start time are skipped.
func BuildTripCalendar(ctx context.Context, s *store.Store, tripID int32) (string, error) {
	trip, err := s.GetTrip(ctx, &store.FindTrip{ID: &tripID})
	if err != nil {
		return "", errors.Wrap(err, "failed to load trip")
	}
	if trip == nil {
		return "", errors.New("trip not found")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Yonder//Trip Itinerary//EN")
	cal.SetName(trip.Name)

	find := &store.FindTripItems{TripID: tripID}

	activities, err := s.ListActivities(ctx, find)
	if err != nil {
		return "", errors.Wrap(err, "failed to list activities")
	}
	for _, activity := range activities {
		if activity.StartTs == 0 {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("activity-%d@yonder", activity.ID))
		event.SetSummary(activity.Name)
		event.SetStartAt(time.Unix(activity.StartTs, 0).UTC())
		if activity.EndTs > 0 {
			event.SetEndAt(time.Unix(activity.EndTs, 0).UTC())
		}
		if activity.Description != "" {
			event.SetDescription(activity.Description)
		}
		if activity.Address != "" {
			event.SetLocation(activity.Address)
		}
	}

	transportations, err := s.ListTransportations(ctx, find)
	if err != nil {
		return "", errors.Wrap(err, "failed to list transportations")
	}
	for _, leg := range transportations {
		if leg.DepartureTs == 0 {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("transportation-%d@yonder", leg.ID))
		event.SetSummary(fmt.Sprintf("%s: %s to %s", leg.Type, leg.Origin, leg.Destination))
		event.SetStartAt(time.Unix(leg.DepartureTs, 0).UTC())
		if leg.ArrivalTs > 0 {
			event.SetEndAt(time.Unix(leg.ArrivalTs, 0).UTC())
		}
		if leg.Confirmation != "" {
			event.SetDescription("Confirmation: " + leg.Confirmation)
		}
	}

	lodgings, err := s.ListLodgings(ctx, find)
	if err != nil {
		return "", errors.Wrap(err, "failed to list lodgings")
	}
	for _, lodging := range lodgings {
		if lodging.CheckInTs == 0 {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("lodging-%d@yonder", lodging.ID))
		event.SetSummary("Stay: " + lodging.Name)
		event.SetStartAt(time.Unix(lodging.CheckInTs, 0).UTC())
		if lodging.CheckOutTs > 0 {
			event.SetEndAt(time.Unix(lodging.CheckOutTs, 0).UTC())
		}
		if lodging.Address != "" {
			event.SetLocation(lodging.Address)
		}
		if lodging.Confirmation != "" {
			event.SetDescription("Confirmation: " + lodging.Confirmation)
		}
	}

	return cal.Serialize(), nil
}
