package store

import "encoding/json"

// PollOption is one selectable answer of a poll. Options are stored as a
// JSON array on the poll row; votes reference options by id.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Poll struct {
	ID            int32
	UID           string
	TripID        int32
	Question      string
	AllowMultiple bool
	Options       string // JSON array of PollOption
	CreatedTs     int64
}

// DecodeOptions parses the stored option list.
func (p *Poll) DecodeOptions() ([]PollOption, error) {
	if p.Options == "" {
		return nil, nil
	}
	var options []PollOption
	if err := json.Unmarshal([]byte(p.Options), &options); err != nil {
		return nil, err
	}
	return options, nil
}

// EncodePollOptions serializes an option list for storage.
func EncodePollOptions(options []PollOption) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type FindPoll struct {
	ID  *int32
	UID *string
}

// Vote is one user's selection of one option. Unique per
// (poll_id, option_id, user_id).
type Vote struct {
	ID        int32
	UID       string
	PollID    int32
	OptionID  string
	UserID    string
	CreatedTs int64
}

type FindVote struct {
	PollID   *int32
	OptionID *string
	UserID   *string
}

type DeleteVote struct {
	ID int32
}

// DeleteVotesFilter removes every vote of one user within one poll. Used by
// the single-answer switch before inserting the replacement row.
type DeleteVotesFilter struct {
	PollID int32
	UserID string
}
