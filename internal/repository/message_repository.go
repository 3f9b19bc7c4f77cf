package repository

import (
	"context"

	"github.com/spec-kit/support-bot/internal/domain"
)

// MessageRepository manages ticket thread messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByTicket returns the last limit messages in chronological order.
	// A non-positive limit returns the whole thread.
	ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error)
}

type messageRepository struct {
	q querier
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, message_type, text, file_id, file_name, is_read, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	return r.q.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Type,
		msg.Text,
		msg.FileID,
		msg.FileName,
		msg.IsRead,
		msg.SentAt,
	).Scan(&msg.ID)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error) {
	// LIMIT NULL is LIMIT ALL.
	const query = `
        SELECT id, ticket_id, sender_id, message_type, text, file_id, file_name, is_read, sent_at
        FROM (
            SELECT id, ticket_id, sender_id, message_type, text, file_id, file_name, is_read, sent_at
            FROM messages WHERE ticket_id=$1
            ORDER BY sent_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY sent_at ASC, id ASC`
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.q.Query(ctx, query, ticketID, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.Type,
			&msg.Text,
			&msg.FileID,
			&msg.FileName,
			&msg.IsRead,
			&msg.SentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
