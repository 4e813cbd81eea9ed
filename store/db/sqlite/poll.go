package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yonder-travel/yonder/store"
)

func (d *DB) CreatePoll(ctx context.Context, create *store.Poll) (*store.Poll, error) {
	fields := []string{"uid", "trip_id", "question", "allow_multiple", "options", "created_ts"}
	args := []any{create.UID, create.TripID, create.Question, create.AllowMultiple, create.Options, create.CreatedTs}

	stmt := `INSERT INTO poll (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	return create, nil
}

func (d *DB) GetPoll(ctx context.Context, find *store.FindPoll) (*store.Poll, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `SELECT id, uid, trip_id, question, allow_multiple, options, created_ts FROM poll WHERE ` +
		strings.Join(where, " AND ")
	poll := &store.Poll{}
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&poll.ID, &poll.UID, &poll.TripID, &poll.Question, &poll.AllowMultiple, &poll.Options, &poll.CreatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	return poll, nil
}

func (d *DB) CreateVote(ctx context.Context, create *store.Vote) (*store.Vote, error) {
	fields := []string{"uid", "poll_id", "option_id", "user_id", "created_ts"}
	args := []any{create.UID, create.PollID, create.OptionID, create.UserID, create.CreatedTs}

	stmt := `INSERT INTO vote (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create vote: %w", err)
	}

	return create, nil
}

func (d *DB) ListVotes(ctx context.Context, find *store.FindVote) ([]*store.Vote, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.PollID != nil {
		where, args = append(where, "poll_id = "+placeholder(len(args)+1)), append(args, *find.PollID)
	}
	if find.OptionID != nil {
		where, args = append(where, "option_id = "+placeholder(len(args)+1)), append(args, *find.OptionID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	query := `SELECT id, uid, poll_id, option_id, user_id, created_ts FROM vote WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Vote, 0)
	for rows.Next() {
		v := &store.Vote{}
		if err := rows.Scan(&v.ID, &v.UID, &v.PollID, &v.OptionID, &v.UserID, &v.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		list = append(list, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteVote(ctx context.Context, delete *store.DeleteVote) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM vote WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("vote not found")
	}

	return nil
}

func (d *DB) DeleteVotes(ctx context.Context, filter *store.DeleteVotesFilter) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM vote WHERE poll_id = `+placeholder(1)+` AND user_id = `+placeholder(2),
		filter.PollID, filter.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}
