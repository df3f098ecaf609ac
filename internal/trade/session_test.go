package trade

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

type roomFixture struct {
	*fixture
	a, b    int64
	x, y, z int64
	session *model.TradeSession
	request string
}

// newRoom sets up an accepted open request: ash wants brock's Onix (y) and
// holds Pikachu (x); brock also holds Geodude (z).
func newRoom(t *testing.T) *roomFixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	r := &roomFixture{fixture: f}
	r.a, r.b = f.user(t, "ash"), f.user(t, "brock")
	r.x, r.y, r.z = f.card(t, "Pikachu", "10"), f.card(t, "Onix", "10.5"), f.card(t, "Geodude", "10")
	f.give(t, r.a, r.x, 1)
	f.give(t, r.b, r.y, 1)
	f.give(t, r.b, r.z, 1)

	req, err := f.svc.CreateRequest(ctx, r.a, NewRequest{To: r.b, RequestedCardID: &r.y})
	require.NoError(t, err)
	res, err := f.svc.AcceptRequest(ctx, req.ID, r.b)
	require.NoError(t, err)
	r.session = res.Session
	r.request = req.ID
	return r
}

func TestRoomNegotiationSettles(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	_, err := r.svc.SelectCard(ctx, id, r.a, r.x)
	require.NoError(t, err)
	s, err := r.svc.SelectCard(ctx, id, r.b, r.y)
	require.NoError(t, err)
	assert.Equal(t, r.y, s.ReceiverSelection.CardID)
	assert.Equal(t, []int64{r.a, r.b}, r.events.selected)

	res, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, res.Outcome)
	assert.True(t, res.Session.InitiatorConfirmed)
	assert.Equal(t, 1, r.owned(t, r.a, r.x), "no ownership change while waiting")

	res, err = r.svc.Complete(ctx, id, r.b, &Expectation{MyCardID: r.y, OpponentCardID: r.x})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, model.SessionCompleted, res.Session.Status)
	assert.NotNil(t, res.Session.CompletedAt)
	assert.Equal(t, "4.76", res.Session.ValueDiffPct.Decimal.String())
	require.NotNil(t, res.Trade)
	assert.Equal(t, "Onix", res.Trade.ReceiverCardName)

	assert.Equal(t, 0, r.owned(t, r.a, r.x))
	assert.Equal(t, 1, r.owned(t, r.a, r.y))
	assert.Equal(t, 1, r.owned(t, r.b, r.x))
	assert.Equal(t, 0, r.owned(t, r.b, r.y))
	assert.Equal(t, []string{id}, r.events.completed)

	req, _ := r.svc.GetRequest(ctx, r.request, r.a)
	assert.Equal(t, model.RequestCompleted, req.Status)
	assert.NotNil(t, req.FinishedAt)

	// Settlement happened once; a later complete sees the terminal state.
	_, err = r.svc.Complete(ctx, id, r.a, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, r.events.completed, 1)

	trades, err := store.ListTrades(ctx, r.db, r.a)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRequestedCardMismatch(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	// The receiver may not even select another card.
	_, err := r.svc.SelectCard(ctx, id, r.b, r.z)
	assert.ErrorIs(t, err, ErrCardNotAllowed)
	assert.Empty(t, r.events.selected)

	// A selection stored before the constraint applied still fails at
	// completion.
	_, err = r.svc.SelectCard(ctx, id, r.a, r.x)
	require.NoError(t, err)
	forceSelection(t, r, r.b, r.z)

	_, err = r.svc.Complete(ctx, id, r.b, nil)
	assert.ErrorIs(t, err, ErrRequestedCardMismatch)

	s, _ := r.svc.GetSession(ctx, id, r.b)
	assert.False(t, s.ReceiverConfirmed, "failed complete records nothing")
	assert.Equal(t, 1, r.owned(t, r.b, r.z))
}

func forceSelection(t *testing.T, r *roomFixture, userID, cardID int64) {
	t.Helper()
	s, err := store.GetSession(context.Background(), r.db, r.session.ID)
	require.NoError(t, err)
	value, err := r.cat.EstimatedValue(context.Background(), cardID)
	require.NoError(t, err)
	ok, err := store.UpdateSelection(context.Background(), r.db, s.ID, s.Version, userID == s.InitiatorID,
		model.Selection{CardID: cardID, EstimatedValue: value})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompleteValidation(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	_, err := r.svc.Complete(ctx, id, r.a, nil)
	assert.ErrorIs(t, err, ErrBothMustSelect)

	_, err = r.svc.SelectCard(ctx, id, r.a, r.y)
	assert.ErrorIs(t, err, ErrCardNotOwned)

	_, err = r.svc.SelectCard(ctx, id, r.a, r.x)
	require.NoError(t, err)
	_, err = r.svc.SelectCard(ctx, id, r.b, r.y)
	require.NoError(t, err)

	_, err = r.svc.Complete(ctx, id, r.a, &Expectation{MyCardID: r.x, OpponentCardID: r.z})
	assert.ErrorIs(t, err, ErrSelectionChanged)

	outsider := r.user(t, "misty")
	_, err = r.svc.Complete(ctx, id, outsider, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = r.svc.Complete(ctx, "missing", r.a, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteValueDiffTooHigh(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	cheap := r.card(t, "Caterpie", "1")
	r.give(t, r.a, cheap, 1)

	_, err := r.svc.SelectCard(ctx, id, r.a, cheap)
	require.NoError(t, err)
	_, err = r.svc.SelectCard(ctx, id, r.b, r.y)
	require.NoError(t, err)

	_, err = r.svc.Complete(ctx, id, r.a, nil)
	assert.ErrorIs(t, err, ErrValueDiffTooHigh)

	s, _ := r.svc.GetSession(ctx, id, r.a)
	assert.Equal(t, model.SessionPending, s.Status)
	assert.False(t, s.InitiatorConfirmed)
}

func TestRepeatedCompleteWhileWaiting(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	r.svc.SelectCard(ctx, id, r.a, r.x)
	r.svc.SelectCard(ctx, id, r.b, r.y)

	first, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)
	again, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, again.Outcome)
	assert.Equal(t, first.Session.Version, again.Session.Version, "repeat confirmation changes nothing")
}

func TestSelectionChangeClearsConfirmations(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	other := r.card(t, "Eevee", "10")
	r.give(t, r.a, other, 1)

	r.svc.SelectCard(ctx, id, r.a, r.x)
	r.svc.SelectCard(ctx, id, r.b, r.y)

	_, err := r.svc.Complete(ctx, id, r.b, nil)
	require.NoError(t, err)

	s, err := r.svc.SelectCard(ctx, id, r.a, other)
	require.NoError(t, err)
	assert.False(t, s.ReceiverConfirmed)

	res, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, res.Outcome, "brock must confirm the new selection")
}

func TestSettlementFailureKeepsConfirmation(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	r.svc.SelectCard(ctx, id, r.a, r.x)
	r.svc.SelectCard(ctx, id, r.b, r.y)

	_, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)

	// Ash gives the selected card away elsewhere.
	misty := r.user(t, "misty")
	require.NoError(t, store.TransferOne(ctx, r.db, r.a, misty, r.x))

	_, err = r.svc.Complete(ctx, id, r.b, nil)
	assert.ErrorIs(t, err, ErrCardNotOwned)

	s, _ := r.svc.GetSession(ctx, id, r.b)
	assert.Equal(t, model.SessionPending, s.Status)
	assert.True(t, s.InitiatorConfirmed)
	assert.True(t, s.ReceiverConfirmed)
	assert.Equal(t, 1, r.owned(t, r.b, r.y))
	assert.Empty(t, r.events.completed)

	// Once the card is back, either party can retry.
	require.NoError(t, store.TransferOne(ctx, r.db, misty, r.a, r.x))
	res, err := r.svc.Complete(ctx, id, r.a, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
}

func TestRejectSession(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	s, err := r.svc.RejectSession(ctx, id, r.a)
	require.NoError(t, err)
	assert.Equal(t, model.SessionRejected, s.Status)
	assert.Equal(t, []string{id}, r.events.rejected)

	_, err = r.svc.RejectSession(ctx, id, r.b)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = r.svc.SelectCard(ctx, id, r.a, r.x)
	assert.ErrorIs(t, err, ErrInvalidState)

	req, _ := r.svc.GetRequest(ctx, r.request, r.a)
	assert.Equal(t, model.RequestRejected, req.Status)
	assert.NotNil(t, req.FinishedAt)
}

func TestPrivateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b := f.user(t, "ash"), f.user(t, "misty")
	x, y := f.card(t, "Pikachu", "10"), f.card(t, "Staryu", "9.5")
	f.give(t, a, x, 1)
	f.give(t, b, y, 1)

	_, err := f.svc.CreatePrivateRoom(ctx, a, a)
	assert.ErrorIs(t, err, ErrSelfTrade)

	s, err := f.svc.CreatePrivateRoom(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, model.TradePrivate, s.TradeType)
	assert.Nil(t, s.RequestedCardID)

	byRoom, err := f.svc.SessionForRoom(ctx, s.RoomCode, b)
	require.NoError(t, err)
	assert.Equal(t, s.ID, byRoom.ID)

	_, err = f.svc.SessionForRoom(ctx, "NOPE00", b)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.SelectCard(ctx, s.ID, a, x)
	require.NoError(t, err)
	_, err = f.svc.SelectCard(ctx, s.ID, b, y)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, s.ID, b, nil)
	require.NoError(t, err)
	res, err := f.svc.Complete(ctx, s.ID, a, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Nil(t, res.Trade.RequestID)
}

func TestCancelUserSessions(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()

	y2 := r.card(t, "Rhyhorn", "4")
	_, err := r.svc.CreateRequest(ctx, r.b, NewRequest{To: r.a, RequestedCardID: &y2})
	require.NoError(t, err)

	n, err := r.svc.CancelUserSessions(ctx, r.a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{r.session.ID}, r.events.cancelled)

	s, _ := r.svc.GetSession(ctx, r.session.ID, r.b)
	assert.Equal(t, model.SessionCancelled, s.Status)

	pending, err := r.svc.ListRequests(ctx, r.a, "", model.RequestPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConcurrentCompleteSettlesOnce(t *testing.T) {
	r := newRoom(t)
	ctx := context.Background()
	id := r.session.ID

	r.svc.SelectCard(ctx, id, r.a, r.x)
	r.svc.SelectCard(ctx, id, r.b, r.y)

	var wg sync.WaitGroup
	results := make([]*CompleteResult, 2)
	errs := make([]error, 2)
	for i, user := range []int64{r.a, r.b} {
		wg.Add(1)
		go func(i int, user int64) {
			defer wg.Done()
			results[i], errs[i] = r.svc.Complete(ctx, id, user, nil)
		}(i, user)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	outcomes := map[Outcome]int{}
	for _, res := range results {
		outcomes[res.Outcome]++
	}
	assert.Equal(t, 1, outcomes[OutcomeWaiting])
	assert.Equal(t, 1, outcomes[OutcomeCompleted])
	assert.Len(t, r.events.completed, 1)

	// Quantities are conserved.
	assert.Equal(t, 1, r.owned(t, r.a, r.x)+r.owned(t, r.b, r.x))
	assert.Equal(t, 1, r.owned(t, r.a, r.y)+r.owned(t, r.b, r.y))
}

func TestNoDoubleSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, c := f.user(t, "ash"), f.user(t, "brock"), f.user(t, "misty")
	x := f.card(t, "Pikachu", "10")
	yb, yc := f.card(t, "Onix", "10"), f.card(t, "Staryu", "10")
	f.give(t, a, x, 1)
	f.give(t, b, yb, 1)
	f.give(t, c, yc, 1)

	var sessions []string
	for _, other := range []struct{ user, card int64 }{{b, yb}, {c, yc}} {
		s, err := f.svc.CreatePrivateRoom(ctx, a, other.user)
		require.NoError(t, err)
		_, err = f.svc.SelectCard(ctx, s.ID, a, x)
		require.NoError(t, err)
		_, err = f.svc.SelectCard(ctx, s.ID, other.user, other.card)
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, s.ID, other.user, nil)
		require.NoError(t, err)
		sessions = append(sessions, s.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sessions))
	for i, id := range sessions {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Complete(ctx, id, a, nil)
		}(i, id)
	}
	wg.Wait()

	var ok, notOwned int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrCardNotOwned):
			notOwned++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notOwned)
	assert.Equal(t, 0, f.owned(t, a, x))
	assert.Equal(t, 1, f.owned(t, b, x)+f.owned(t, c, x))
}
