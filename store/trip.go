package store

// Trip domain rows. These are the dispatch targets of assistant-proposed
// actions; the chat core treats their internals as opaque.

type Trip struct {
	ID          int32
	UID         string
	Name        string
	Description string
	Currency    string
	StartTs     int64
	EndTs       int64
	CreatedTs   int64
}

type FindTrip struct {
	ID  *int32
	UID *string
}

type Expense struct {
	ID        int32
	TripID    int32
	Name      string
	Amount    float64
	Currency  string
	PaidBy    string
	CreatedTs int64
}

type Activity struct {
	ID          int32
	TripID      int32
	Name        string
	Description string
	Address     string
	StartTs     int64
	EndTs       int64
	CreatedTs   int64
}

type Transportation struct {
	ID           int32
	TripID       int32
	Type         string // flight, train, bus, car, ferry
	Origin       string
	Destination  string
	DepartureTs  int64
	ArrivalTs    int64
	Confirmation string
	CreatedTs    int64
}

type Lodging struct {
	ID           int32
	TripID       int32
	Type         string // hotel, rental, hostel, camping
	Name         string
	Address      string
	CheckInTs    int64
	CheckOutTs   int64
	Confirmation string
	CreatedTs    int64
}

type Note struct {
	ID        int32
	TripID    int32
	Title     string
	Content   string
	CreatedTs int64
}

type ChecklistItem struct {
	ID        int32
	TripID    int32
	Text      string
	Done      bool
	CreatedTs int64
}

type FindTripItems struct {
	TripID int32
}
