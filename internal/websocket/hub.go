package websocket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"notechat-be/internal/entity"
	"notechat-be/internal/pkg/logger"
)

// HistoryLimit caps how many stored messages a join replays.
const HistoryLimit = 20

// Delivery pushes one outbound payload to one connection. Implementations
// must not block the caller.
type Delivery interface {
	Deliver(payload []byte)
}

// MessageStore is the durable side of the chat. Calls run outside the hub
// loop, concurrently with each other.
type MessageStore interface {
	Save(ctx context.Context, senderID, conversationID int64, content string) error
	Recent(ctx context.Context, conversationID int64, limit int) ([]*entity.ChatMessage, error)
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Online int           `json:"online"`
	Rooms  map[int64]int `json:"rooms"`
}

// Hub is the chat broker. It owns the session table and room membership;
// every mutation and routing decision happens on the Run goroutine, one
// command at a time, so neither map needs a lock.
type Hub struct {
	sessions map[int64]Delivery
	rooms    map[int64]map[int64]struct{}

	commands chan command

	store          MessageStore
	persistTimeout time.Duration
	logger         logger.ILogger

	tasks  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type HubOption func(*Hub)

// WithPersistTimeout bounds each Save and Recent call.
func WithPersistTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.persistTimeout = d }
}

// WithQueueSize sets the command queue buffer.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) { h.commands = make(chan command, n) }
}

func NewHub(store MessageStore, log logger.ILogger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions:       make(map[int64]Delivery),
		rooms:          make(map[int64]map[int64]struct{}),
		commands:       make(chan command, 1024),
		store:          store,
		persistTimeout: 5 * time.Second,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type command interface {
	apply(h *Hub)
}

type registerCmd struct {
	userID   int64
	delivery Delivery
}

type unregisterCmd struct {
	userID int64
}

type joinCmd struct {
	userID         int64
	conversationID int64
}

type routeCmd struct {
	senderID       int64
	conversationID int64
	content        string
}

// historyCmd carries a finished history fetch back onto the hub loop.
type historyCmd struct {
	userID         int64
	conversationID int64
	messages       []*entity.ChatMessage
}

type statsCmd struct {
	reply chan Stats
}

type membersCmd struct {
	conversationID int64
	reply          chan []int64
}

// Register binds userID to delivery, superseding any previous binding.
func (h *Hub) Register(userID int64, delivery Delivery) {
	h.submit(registerCmd{userID: userID, delivery: delivery})
}

// Unregister drops the session of userID and its memberships. Unknown ids are ignored.
func (h *Hub) Unregister(userID int64) {
	h.submit(unregisterCmd{userID: userID})
}

// Join subscribes userID to a conversation and replays recent history to it.
func (h *Hub) Join(userID, conversationID int64) {
	h.submit(joinCmd{userID: userID, conversationID: conversationID})
}

// Route fans content out to the conversation's live members and stores it.
func (h *Hub) Route(senderID, conversationID int64, content string) {
	h.submit(routeCmd{senderID: senderID, conversationID: conversationID, content: content})
}

// Stats is answered on the hub loop, after every command submitted before it.
// The zero value is returned once the hub has stopped.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	if !h.submit(statsCmd{reply: reply}) {
		return Stats{Rooms: map[int64]int{}}
	}
	select {
	case s := <-reply:
		return s
	case <-h.done:
		return Stats{Rooms: map[int64]int{}}
	}
}

// Members lists the current members of a conversation in ascending order.
func (h *Hub) Members(conversationID int64) []int64 {
	reply := make(chan []int64, 1)
	if !h.submit(membersCmd{conversationID: conversationID, reply: reply}) {
		return nil
	}
	select {
	case m := <-reply:
		return m
	case <-h.done:
		return nil
	}
}

func (h *Hub) submit(cmd command) bool {
	select {
	case h.commands <- cmd:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run processes commands until Shutdown. Call it in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			return
		case cmd := <-h.commands:
			cmd.apply(h)
		}
	}
}

// Shutdown stops the loop and waits for in-flight store tasks.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Hub", "Initiating hub shutdown", nil)
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.tasks.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("Hub", "Hub shutdown completed", nil)
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub", "Hub shutdown timeout reached, store tasks still running", nil)
		return context.DeadlineExceeded
	}
}

func (c registerCmd) apply(h *Hub) {
	if _, replaced := h.sessions[c.userID]; replaced {
		h.logger.Info("Hub", "Session superseded by new connection", map[string]interface{}{"user_id": c.userID})
	}
	h.sessions[c.userID] = c.delivery
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": c.userID, "online": len(h.sessions)})
}

func (c unregisterCmd) apply(h *Hub) {
	_, known := h.sessions[c.userID]
	delete(h.sessions, c.userID)
	for conversationID, members := range h.rooms {
		delete(members, c.userID)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if known {
		h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": c.userID, "online": len(h.sessions)})
	}
}

func (c joinCmd) apply(h *Hub) {
	members, ok := h.rooms[c.conversationID]
	if !ok {
		members = make(map[int64]struct{})
		h.rooms[c.conversationID] = members
	}
	members[c.userID] = struct{}{}

	h.spawn(func(ctx context.Context) {
		messages, err := h.store.Recent(ctx, c.conversationID, HistoryLimit)
		if err != nil {
			h.logger.Error("Hub", "Failed to load history", map[string]interface{}{
				"user_id":         c.userID,
				"conversation_id": c.conversationID,
				"error":           err.Error(),
			})
			return
		}
		if len(messages) == 0 {
			return
		}
		h.submit(historyCmd{userID: c.userID, conversationID: c.conversationID, messages: messages})
	})
}

func (c routeCmd) apply(h *Hub) {
	payload := FormatPayload(c.senderID, c.content)

	delivered := 0
	for userID := range h.rooms[c.conversationID] {
		if d, ok := h.sessions[userID]; ok {
			d.Deliver(payload)
			delivered++
		}
	}
	h.logger.Debug("Hub", "Broadcast message", map[string]interface{}{
		"sender_id":       c.senderID,
		"conversation_id": c.conversationID,
		"recipients":      delivered,
	})

	h.spawn(func(ctx context.Context) {
		if err := h.store.Save(ctx, c.senderID, c.conversationID, c.content); err != nil {
			h.logger.Error("Hub", "Failed to persist message", map[string]interface{}{
				"sender_id":       c.senderID,
				"conversation_id": c.conversationID,
				"error":           err.Error(),
			})
		}
	})
}

func (c historyCmd) apply(h *Hub) {
	d, ok := h.sessions[c.userID]
	if !ok {
		return
	}
	n := len(c.messages)
	if n > HistoryLimit {
		n = HistoryLimit
	}
	// Store order is newest first and is replayed as-is.
	for _, m := range c.messages[:n] {
		d.Deliver(FormatPayload(m.SenderId, m.Content))
	}
}

func (c statsCmd) apply(h *Hub) {
	rooms := make(map[int64]int, len(h.rooms))
	for id, members := range h.rooms {
		rooms[id] = len(members)
	}
	c.reply <- Stats{Online: len(h.sessions), Rooms: rooms}
}

func (c membersCmd) apply(h *Hub) {
	members := make([]int64, 0, len(h.rooms[c.conversationID]))
	for id := range h.rooms[c.conversationID] {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	c.reply <- members
}

// spawn runs a store task off the hub loop. Tasks are not tied to the
// connection that caused them.
func (h *Hub) spawn(task func(ctx context.Context)) {
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
		defer cancel()
		task(ctx)
	}()
}

// FormatPayload renders the text frame sent for live and replayed messages.
func FormatPayload(senderID int64, content string) []byte {
	return []byte(fmt.Sprintf("%d: %s", senderID, content))
}
