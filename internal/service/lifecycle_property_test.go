package service_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
)

// TestRandomOperationsKeepInvariants drives the engine with random commands
// from random actors and checks the status graph and cardinality rules after
// every step, whether the command succeeded or not.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		runRandomSequence(t, seed, 150)
	}
}

func runRandomSequence(t *testing.T, seed int64, steps int) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(seed))
	h := newHarness(t)

	admin := h.user(t, domain.RoleAdmin)
	var users, mods []*domain.User
	for i := 0; i < 4; i++ {
		users = append(users, h.user(t, domain.RoleUser))
	}
	for i := 0; i < 3; i++ {
		mods = append(mods, h.user(t, domain.RoleModerator))
	}

	previous := map[int64]domain.TicketStatus{}
	pickTicket := func() int64 {
		if len(previous) == 0 {
			return 1
		}
		return int64(rng.Intn(len(previous)+1) + 1)
	}

	for step := 0; step < steps; step++ {
		user := users[rng.Intn(len(users))]
		mod := mods[rng.Intn(len(mods))]
		id := pickTicket()

		switch rng.Intn(8) {
		case 0:
			_, _ = h.lifecycle.CreateTicket(ctx, user, domain.TextContent("problem"))
		case 1:
			_, _ = h.lifecycle.Claim(ctx, mod, id)
		case 2:
			_, _ = h.lifecycle.SendMessage(ctx, user, id, domain.TextContent("ping"))
		case 3:
			_, _ = h.lifecycle.MarkResolved(ctx, mod, id)
		case 4:
			_, _ = h.lifecycle.Reassign(ctx, mod, id, mods[rng.Intn(len(mods))].ID)
		case 5:
			_, _ = h.lifecycle.Rate(ctx, user, id, rng.Intn(7))
		case 6:
			if rng.Intn(4) == 0 {
				_, _ = h.lifecycle.ForceRelease(ctx, admin, mod.ID, "")
			}
		case 7:
			_, _ = h.lifecycle.Reopen(ctx, admin, id)
		}

		tickets, err := h.store.Tickets().ListWithFilter(ctx, repository.TicketFilter{Limit: 1000})
		require.NoError(t, err)
		checkInvariants(t, seed, step, tickets, previous)
	}
}

func checkInvariants(t *testing.T, seed int64, step int, tickets []domain.Ticket, previous map[int64]domain.TicketStatus) {
	t.Helper()
	activePerUser := map[int64]int{}
	inProgressPerModerator := map[int64]int{}

	for _, tk := range tickets {
		require.True(t, tk.Status.Valid(), "seed %d step %d: invalid status %q", seed, step, tk.Status)

		if prev, ok := previous[tk.ID]; ok && prev != tk.Status {
			require.True(t, domain.CanTransition(prev, tk.Status),
				"seed %d step %d: ticket %d moved %s -> %s", seed, step, tk.ID, prev, tk.Status)
		}
		if _, ok := previous[tk.ID]; !ok {
			require.Equal(t, domain.TicketStatusOpen, tk.Status, "seed %d step %d: new ticket not open", seed, step)
		}
		previous[tk.ID] = tk.Status

		require.Equal(t, tk.Status == domain.TicketStatusOpen, tk.ModeratorID == nil,
			"seed %d step %d: ticket %d moderator/status mismatch", seed, step, tk.ID)
		require.Equal(t, tk.Status == domain.TicketStatusClosed, tk.Rating != nil,
			"seed %d step %d: ticket %d rating/status mismatch", seed, step, tk.ID)
		if tk.Rating != nil {
			require.True(t, domain.ValidRating(*tk.Rating))
		}

		if tk.Status.IsActive() {
			activePerUser[tk.UserID]++
		}
		if tk.Status == domain.TicketStatusInProgress {
			inProgressPerModerator[*tk.ModeratorID]++
		}
	}

	for userID, n := range activePerUser {
		require.LessOrEqual(t, n, 1, "seed %d step %d: user %d has %d active tickets", seed, step, userID, n)
	}
	for modID, n := range inProgressPerModerator {
		require.LessOrEqual(t, n, 1, "seed %d step %d: moderator %d has %d tickets in progress", seed, step, modID, n)
	}
}
