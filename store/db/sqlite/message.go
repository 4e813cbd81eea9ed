package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yonder-travel/yonder/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	fields := []string{"uid", "conversation_id", "sender_id", "content", "metadata", "created_ts"}
	args := []any{create.UID, create.ConversationID, create.SenderID, create.Content, create.Metadata, create.CreatedTs}

	stmt := `INSERT INTO message (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return create, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}

	query := `SELECT id, uid, conversation_id, sender_id, content, metadata, created_ts FROM message WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.UID, &m.ConversationID, &m.SenderID, &m.Content, &m.Metadata, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateMessage(ctx context.Context, update *store.UpdateMessage) (*store.Message, error) {
	set, args := []string{}, []any{}

	if update.Metadata != nil {
		set, args = append(set, "metadata = "+placeholder(len(args)+1)), append(args, *update.Metadata)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	where := []string{"id = " + placeholder(len(args))}
	if update.ExpectedMetadata != nil {
		args = append(args, *update.ExpectedMetadata)
		where = append(where, "metadata = "+placeholder(len(args)))
	}
	stmt := `UPDATE message SET ` + strings.Join(set, ", ") + ` WHERE ` + strings.Join(where, " AND ") +
		` RETURNING id, uid, conversation_id, sender_id, content, metadata, created_ts`
	result := &store.Message{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&result.ID, &result.UID, &result.ConversationID, &result.SenderID, &result.Content, &result.Metadata, &result.CreatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			if update.ExpectedMetadata != nil {
				return nil, store.ErrStaleMetadata
			}
			return nil, fmt.Errorf("message not found")
		}
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	return result, nil
}

func (d *DB) DeleteMessage(ctx context.Context, delete *store.DeleteMessage) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM message WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("message not found")
	}

	return nil
}

func (d *DB) DeleteMessages(ctx context.Context, filter *store.DeleteMessagesFilter) ([]int32, error) {
	where, args := []string{"conversation_id = " + placeholder(1)}, []any{filter.ConversationID}
	if filter.IncludeAssistant {
		where = append(where, "(sender_id = "+placeholder(2)+" OR sender_id = "+placeholder(3)+")")
		args = append(args, filter.SenderID, store.AssistantSenderID)
	} else {
		where = append(where, "sender_id = "+placeholder(2))
		args = append(args, filter.SenderID)
	}

	rows, err := d.db.QueryContext(ctx, `DELETE FROM message WHERE `+strings.Join(where, " AND ")+` RETURNING id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}
	defer rows.Close()

	deleted := make([]int32, 0)
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted message id: %w", err)
		}
		deleted = append(deleted, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted messages: %w", err)
	}

	return deleted, nil
}
