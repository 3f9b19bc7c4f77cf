package memory

import (
	"context"

	"github.com/spec-kit/support-bot/internal/domain"
)

type messageRepository struct {
	s *Store
}

func (r *messageRepository) Create(_ context.Context, msg *domain.Message) error {
	return r.s.do(func(d *state) error {
		d.nextMessage++
		msg.ID = d.nextMessage
		d.messages = append(d.messages, *msg)
		return nil
	})
}

func (r *messageRepository) ListByTicket(_ context.Context, ticketID int64, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := r.s.do(func(d *state) error {
		for _, m := range d.messages {
			if m.TicketID == ticketID {
				out = append(out, m)
			}
		}
		return nil
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, err
}
