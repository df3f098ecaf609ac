// Package room relays trade negotiation rooms over WebSockets. Rooms hold no
// durable state; a joining client is sent the stored session so it can
// resync after a reconnect.
package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
	"github.com/erazemk/menjava/internal/trade"
)

// MaxMessageLength is the longest chat line relayed, in bytes. Longer lines
// are cut at a character boundary.
const MaxMessageLength = 500

// Room-level errors reported with an error event.
var (
	ErrNotJoined   = errors.New("join the room first")
	ErrRateLimited = errors.New("too many messages")
	ErrEmptyText   = errors.New("message text required")
)

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	ChatRate  float64
	ChatBurst int
}

// Hub tracks which connections are in which room and relays events between
// them. It implements trade.Notifier.
type Hub struct {
	svc *trade.Service
	db  *sql.DB

	chatRate  rate.Limit
	chatBurst int

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	conns map[*Client]struct{}
}

// NewHub creates a hub and registers it as the service's notifier.
func NewHub(svc *trade.Service, db *sql.DB, opts Options) *Hub {
	h := &Hub{
		svc:       svc,
		db:        db,
		chatRate:  rate.Limit(opts.ChatRate),
		chatBurst: opts.ChatBurst,
		rooms:     make(map[string]map[*Client]struct{}),
		conns:     make(map[*Client]struct{}),
	}
	if h.chatRate <= 0 {
		h.chatRate = 2
	}
	if h.chatBurst <= 0 {
		h.chatBurst = 5
	}
	svc.SetNotifier(h)
	return h
}

// Dispatch runs one client command. Failures are sent back to the client as
// an error event and never broadcast.
func (h *Hub) Dispatch(ctx context.Context, c *Client, cmd Command) {
	var err error
	switch cmd := cmd.(type) {
	case *JoinRoom:
		err = h.join(ctx, c, cmd.RoomCode)
	case *SelectCard:
		err = h.selectCard(ctx, c, cmd)
	case *SendMessage:
		err = h.sendMessage(c, cmd)
	case *CompleteTrade:
		err = h.complete(ctx, c, cmd)
	case *RejectTrade:
		_, err = h.svc.RejectSession(ctx, cmd.SessionID, c.userID)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}

	if err != nil {
		var name string
		if cmd != nil {
			name = cmd.command()
		}
		c.reply(errorEvent(name, err))
	}
}

func (h *Hub) join(ctx context.Context, c *Client, roomCode string) error {
	session, err := h.svc.SessionForRoom(ctx, roomCode, c.userID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionPending {
		// Finished rooms stay readable but take no members.
		c.reply(SessionState{Session: session})
		return fmt.Errorf("%w: room %s is %s", trade.ErrInvalidState, roomCode, session.Status)
	}

	h.mu.Lock()
	members, ok := h.rooms[roomCode]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomCode] = members
	}
	members[c] = struct{}{}
	c.rooms[roomCode] = session.ID
	h.mu.Unlock()

	// The session may have finished after it was read, in which case the
	// close notification has already run.
	current, err := h.svc.SessionForRoom(ctx, roomCode, c.userID)
	if err != nil {
		h.mu.Lock()
		delete(members, c)
		if len(h.rooms[roomCode]) == 0 {
			delete(h.rooms, roomCode)
		}
		delete(c.rooms, roomCode)
		h.mu.Unlock()
		return err
	}
	if current.Status != model.SessionPending {
		h.closeRoom(roomCode)
		c.reply(SessionState{Session: current})
		return fmt.Errorf("%w: room %s is %s", trade.ErrInvalidState, roomCode, current.Status)
	}

	slog.Info("room joined", "room", roomCode, "user", c.username)
	c.reply(SessionState{Session: current})
	h.broadcastRoster(roomCode)
	return nil
}

// closeRoom drops every member of a room whose session has finished.
func (h *Hub) closeRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[roomCode] {
		delete(c.rooms, roomCode)
	}
	delete(h.rooms, roomCode)
}

func (h *Hub) selectCard(ctx context.Context, c *Client, cmd *SelectCard) error {
	session, err := h.svc.SessionForRoom(ctx, cmd.RoomCode, c.userID)
	if err != nil {
		return err
	}
	_, err = h.svc.SelectCard(ctx, session.ID, c.userID, cmd.CardID)
	return err
}

func (h *Hub) sendMessage(c *Client, cmd *SendMessage) error {
	if !c.joined(cmd.RoomCode) {
		return ErrNotJoined
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return ErrEmptyText
	}
	if len(text) > MaxMessageLength {
		cut := MaxMessageLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	h.broadcast(cmd.RoomCode, c.userID, ReceiveMessage{
		RoomCode: cmd.RoomCode,
		User:     Occupant{UserID: c.userID, Username: c.username},
		Text:     text,
		SentAt:   time.Now().UTC(),
	})
	return nil
}

func (h *Hub) complete(ctx context.Context, c *Client, cmd *CompleteTrade) error {
	var expect *trade.Expectation
	if cmd.MyCardID != nil && cmd.OpponentCardID != nil {
		expect = &trade.Expectation{MyCardID: *cmd.MyCardID, OpponentCardID: *cmd.OpponentCardID}
	}

	res, err := h.svc.Complete(ctx, cmd.SessionID, c.userID, expect)
	if err != nil {
		return err
	}
	if res.Outcome == trade.OutcomeWaiting {
		c.reply(WaitingOtherUser{SessionID: cmd.SessionID})
	}
	return nil
}

// leave removes a closed connection from every room it joined.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	delete(h.conns, c)
	var left []string
	for code := range c.rooms {
		if members, ok := h.rooms[code]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
			left = append(left, code)
		}
	}
	h.mu.Unlock()

	for _, code := range left {
		slog.Info("room left", "room", code, "user", c.username)
		h.broadcastRoster(code)
	}
}

// Occupants returns the distinct users connected to a room, by user id.
func (h *Hub) Occupants(roomCode string) []Occupant {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[int64]bool)
	var out []Occupant
	for c := range h.rooms[roomCode] {
		if seen[c.userID] {
			continue
		}
		seen[c.userID] = true
		out = append(out, Occupant{UserID: c.userID, Username: c.username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (h *Hub) broadcastRoster(roomCode string) {
	h.broadcast(roomCode, 0, RoomUsers{RoomCode: roomCode, Users: h.Occupants(roomCode)})
}

// broadcast sends an event to every connection in a room, skipping those of
// the excluded user (0 excludes nobody).
func (h *Hub) broadcast(roomCode string, exclude int64, e Event) {
	msg, err := EncodeEvent(e)
	if err != nil {
		slog.Error("failed to encode room event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomCode] {
		if exclude != 0 && c.userID == exclude {
			continue
		}
		c.enqueue(msg)
	}
}

// CardSelected implements trade.Notifier.
func (h *Hub) CardSelected(s *model.TradeSession, userID int64) {
	sel := s.SelectionOf(userID)
	if sel == nil {
		return
	}
	h.broadcast(s.RoomCode, userID, CardSelected{
		RoomCode: s.RoomCode,
		User:     Occupant{UserID: userID, Username: h.username(userID)},
		Card:     *sel,
	})
}

// TradeCompleted implements trade.Notifier.
func (h *Hub) TradeCompleted(s *model.TradeSession, t *model.Trade) {
	h.broadcast(s.RoomCode, 0, TradeCompleted{RoomCode: s.RoomCode, Session: s, Trade: t})
	h.closeRoom(s.RoomCode)
}

// TradeRejected implements trade.Notifier.
func (h *Hub) TradeRejected(s *model.TradeSession, userID int64) {
	h.broadcast(s.RoomCode, 0, TradeRejected{RoomCode: s.RoomCode, UserID: userID})
	h.closeRoom(s.RoomCode)
}

// TradeCancelled implements trade.Notifier.
func (h *Hub) TradeCancelled(s *model.TradeSession) {
	h.broadcast(s.RoomCode, 0, TradeCancelled{RoomCode: s.RoomCode})
	h.closeRoom(s.RoomCode)
}

func (h *Hub) username(userID int64) string {
	h.mu.RLock()
	for c := range h.conns {
		if c.userID == userID {
			h.mu.RUnlock()
			return c.username
		}
	}
	h.mu.RUnlock()

	names, err := store.GetUsernames(context.Background(), h.db, []int64{userID})
	if err != nil {
		slog.Warn("failed to look up username", "user", userID, "error", err)
		return ""
	}
	return names[userID]
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

func errorEvent(command string, err error) Error {
	code := trade.CodeOf(err)
	switch {
	case errors.Is(err, ErrNotJoined):
		code = "not_joined"
	case errors.Is(err, ErrRateLimited):
		code = "rate_limited"
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrMalformedCommand):
		code = "bad_request"
	}
	return Error{Command: command, Code: code, Message: err.Error()}
}
