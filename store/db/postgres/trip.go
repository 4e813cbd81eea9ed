package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yonder-travel/yonder/store"
)

func (d *DB) CreateTrip(ctx context.Context, create *store.Trip) (*store.Trip, error) {
	fields := []string{"uid", "name", "description", "currency", "start_ts", "end_ts", "created_ts"}
	args := []any{create.UID, create.Name, create.Description, create.Currency, create.StartTs, create.EndTs, create.CreatedTs}

	stmt := `INSERT INTO trip (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	return create, nil
}

func (d *DB) GetTrip(ctx context.Context, find *store.FindTrip) (*store.Trip, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `SELECT id, uid, name, description, currency, start_ts, end_ts, created_ts FROM trip WHERE ` +
		strings.Join(where, " AND ")
	trip := &store.Trip{}
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&trip.ID, &trip.UID, &trip.Name, &trip.Description, &trip.Currency, &trip.StartTs, &trip.EndTs, &trip.CreatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

func (d *DB) CreateExpense(ctx context.Context, create *store.Expense) (*store.Expense, error) {
	fields := []string{"trip_id", "name", "amount", "currency", "paid_by", "created_ts"}
	args := []any{create.TripID, create.Name, create.Amount, create.Currency, create.PaidBy, create.CreatedTs}

	stmt := `INSERT INTO expense (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	return create, nil
}

func (d *DB) ListExpenses(ctx context.Context, find *store.FindTripItems) ([]*store.Expense, error) {
	query := `SELECT id, trip_id, name, amount, currency, paid_by, created_ts FROM expense WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Expense, 0)
	for rows.Next() {
		e := &store.Expense{}
		if err := rows.Scan(&e.ID, &e.TripID, &e.Name, &e.Amount, &e.Currency, &e.PaidBy, &e.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return list, nil
}

func (d *DB) CreateActivity(ctx context.Context, create *store.Activity) (*store.Activity, error) {
	fields := []string{"trip_id", "name", "description", "address", "start_ts", "end_ts", "created_ts"}
	args := []any{create.TripID, create.Name, create.Description, create.Address, create.StartTs, create.EndTs, create.CreatedTs}

	stmt := `INSERT INTO activity (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	return create, nil
}

func (d *DB) ListActivities(ctx context.Context, find *store.FindTripItems) ([]*store.Activity, error) {
	query := `SELECT id, trip_id, name, description, address, start_ts, end_ts, created_ts FROM activity WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY start_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Activity, 0)
	for rows.Next() {
		a := &store.Activity{}
		if err := rows.Scan(&a.ID, &a.TripID, &a.Name, &a.Description, &a.Address, &a.StartTs, &a.EndTs, &a.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}

	return list, nil
}

func (d *DB) CreateTransportation(ctx context.Context, create *store.Transportation) (*store.Transportation, error) {
	fields := []string{"trip_id", "type", "origin", "destination", "departure_ts", "arrival_ts", "confirmation", "created_ts"}
	args := []any{create.TripID, create.Type, create.Origin, create.Destination, create.DepartureTs, create.ArrivalTs, create.Confirmation, create.CreatedTs}

	stmt := `INSERT INTO transportation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create transportation: %w", err)
	}

	return create, nil
}

func (d *DB) ListTransportations(ctx context.Context, find *store.FindTripItems) ([]*store.Transportation, error) {
	query := `SELECT id, trip_id, type, origin, destination, departure_ts, arrival_ts, confirmation, created_ts FROM transportation WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY departure_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transportations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Transportation, 0)
	for rows.Next() {
		t := &store.Transportation{}
		if err := rows.Scan(&t.ID, &t.TripID, &t.Type, &t.Origin, &t.Destination, &t.DepartureTs, &t.ArrivalTs, &t.Confirmation, &t.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan transportation: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transportations: %w", err)
	}

	return list, nil
}

func (d *DB) CreateLodging(ctx context.Context, create *store.Lodging) (*store.Lodging, error) {
	fields := []string{"trip_id", "type", "name", "address", "check_in_ts", "check_out_ts", "confirmation", "created_ts"}
	args := []any{create.TripID, create.Type, create.Name, create.Address, create.CheckInTs, create.CheckOutTs, create.Confirmation, create.CreatedTs}

	stmt := `INSERT INTO lodging (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create lodging: %w", err)
	}

	return create, nil
}

func (d *DB) ListLodgings(ctx context.Context, find *store.FindTripItems) ([]*store.Lodging, error) {
	query := `SELECT id, trip_id, type, name, address, check_in_ts, check_out_ts, confirmation, created_ts FROM lodging WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY check_in_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lodgings: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Lodging, 0)
	for rows.Next() {
		l := &store.Lodging{}
		if err := rows.Scan(&l.ID, &l.TripID, &l.Type, &l.Name, &l.Address, &l.CheckInTs, &l.CheckOutTs, &l.Confirmation, &l.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan lodging: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lodgings: %w", err)
	}

	return list, nil
}

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	fields := []string{"trip_id", "title", "content", "created_ts"}
	args := []any{create.TripID, create.Title, create.Content, create.CreatedTs}

	stmt := `INSERT INTO note (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return create, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindTripItems) ([]*store.Note, error) {
	query := `SELECT id, trip_id, title, content, created_ts FROM note WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Note, 0)
	for rows.Next() {
		n := &store.Note{}
		if err := rows.Scan(&n.ID, &n.TripID, &n.Title, &n.Content, &n.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return list, nil
}

func (d *DB) CreateChecklistItem(ctx context.Context, create *store.ChecklistItem) (*store.ChecklistItem, error) {
	fields := []string{"trip_id", "text", "done", "created_ts"}
	args := []any{create.TripID, create.Text, create.Done, create.CreatedTs}

	stmt := `INSERT INTO checklist_item (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create checklist item: %w", err)
	}

	return create, nil
}

func (d *DB) ListChecklistItems(ctx context.Context, find *store.FindTripItems) ([]*store.ChecklistItem, error) {
	query := `SELECT id, trip_id, text, done, created_ts FROM checklist_item WHERE trip_id = ` +
		placeholder(1) + ` ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ChecklistItem, 0)
	for rows.Next() {
		c := &store.ChecklistItem{}
		if err := rows.Scan(&c.ID, &c.TripID, &c.Text, &c.Done, &c.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checklist items: %w", err)
	}

	return list, nil
}
