package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	UpdateMessage(ctx context.Context, update *UpdateMessage) (*Message, error)
	DeleteMessage(ctx context.Context, delete *DeleteMessage) error
	DeleteMessages(ctx context.Context, filter *DeleteMessagesFilter) ([]int32, error)

	// Poll and Vote model related methods.
	CreatePoll(ctx context.Context, create *Poll) (*Poll, error)
	GetPoll(ctx context.Context, find *FindPoll) (*Poll, error)
	CreateVote(ctx context.Context, create *Vote) (*Vote, error)
	ListVotes(ctx context.Context, find *FindVote) ([]*Vote, error)
	DeleteVote(ctx context.Context, delete *DeleteVote) error
	DeleteVotes(ctx context.Context, filter *DeleteVotesFilter) (int64, error)

	// Trip model related methods.
	CreateTrip(ctx context.Context, create *Trip) (*Trip, error)
	GetTrip(ctx context.Context, find *FindTrip) (*Trip, error)

	// Trip item model related methods, the dispatch targets of
	// assistant-proposed actions.
	CreateExpense(ctx context.Context, create *Expense) (*Expense, error)
	ListExpenses(ctx context.Context, find *FindTripItems) ([]*Expense, error)
	CreateActivity(ctx context.Context, create *Activity) (*Activity, error)
	ListActivities(ctx context.Context, find *FindTripItems) ([]*Activity, error)
	CreateTransportation(ctx context.Context, create *Transportation) (*Transportation, error)
	ListTransportations(ctx context.Context, find *FindTripItems) ([]*Transportation, error)
	CreateLodging(ctx context.Context, create *Lodging) (*Lodging, error)
	ListLodgings(ctx context.Context, find *FindTripItems) ([]*Lodging, error)
	CreateNote(ctx context.Context, create *Note) (*Note, error)
	ListNotes(ctx context.Context, find *FindTripItems) ([]*Note, error)
	CreateChecklistItem(ctx context.Context, create *ChecklistItem) (*ChecklistItem, error)
	ListChecklistItems(ctx context.Context, find *FindTripItems) ([]*ChecklistItem, error)
}
