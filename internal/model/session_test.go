package model

import "testing"

func TestSessionParties(t *testing.T) {
	card := int64(7)
	receiver := int64(2)
	s := &TradeSession{
		InitiatorID:        1,
		ReceiverID:         receiver,
		RequestedCardID:    &card,
		ConstrainedUserID:  &receiver,
		ReceiverSelection:  &Selection{CardID: card},
		InitiatorConfirmed: true,
	}

	if !s.Participant(1) || !s.Participant(2) || s.Participant(3) {
		t.Error("unexpected participant check")
	}
	if s.Counterpart(1) != 2 || s.Counterpart(2) != 1 {
		t.Error("unexpected counterpart")
	}
	if s.SelectionOf(1) != nil || s.SelectionOf(2) == nil || s.SelectionOf(3) != nil {
		t.Error("unexpected selections")
	}
	if !s.Confirmed(1) || s.Confirmed(2) || s.Confirmed(3) {
		t.Error("unexpected confirmations")
	}
	if s.Constrains(1) || !s.Constrains(2) {
		t.Error("expected only the receiver to be constrained")
	}

	s.RequestedCardID = nil
	if s.Constrains(2) {
		t.Error("expected no constraint without a requested card")
	}
}

func TestStatusTerminal(t *testing.T) {
	if SessionPending.Terminal() || SessionAccepted.Terminal() {
		t.Error("pending and accepted sessions are not terminal")
	}
	if !SessionCompleted.Terminal() || !SessionRejected.Terminal() || !SessionCancelled.Terminal() {
		t.Error("completed, rejected and cancelled sessions are terminal")
	}
	if RequestAccepted.Terminal() || !RequestCompleted.Terminal() {
		t.Error("unexpected request terminal states")
	}
}
