package bot

import (
	"sync"
	"time"
)

// ResetAction is the destructive action a confirmation guards.
type ResetAction string

const (
	// ResetMonth deletes the current calendar month's records.
	ResetMonth ResetAction = "month"
	// ResetAll deletes the chat's complete history.
	ResetAll ResetAction = "all"
)

// defaultConfirmExpiry bounds how long a pending confirmation stays valid.
const defaultConfirmExpiry = 10 * time.Minute

// TakeResult classifies a confirm/cancel attempt against the pending state.
type TakeResult int

const (
	// TakeOK: the requester resolved the confirmation; the entry is removed.
	TakeOK TakeResult = iota
	// TakeUnauthorized: someone other than the requester pressed the button;
	// the entry stays pending.
	TakeUnauthorized
	// TakeExpired: the entry outlived the expiry window and was removed.
	TakeExpired
	// TakeNone: no confirmation is pending for the key.
	TakeNone
)

// PendingReset is one awaiting confirmation, scoped to the chat and action
// that created it.
type PendingReset struct {
	RequesterID int64
	MessageID   int
	CreatedAt   time.Time
}

type confirmKey struct {
	chatID int64
	action ResetAction
}

// Confirmations tracks pending destructive-action confirmations keyed by
// (chat, action). A repeated request replaces the previous pending entry.
type Confirmations struct {
	mu      sync.Mutex
	pending map[confirmKey]PendingReset
	expiry  time.Duration
	now     func() time.Time
}

// NewConfirmations creates a Confirmations registry with the default expiry.
func NewConfirmations() *Confirmations {
	return &Confirmations{
		pending: make(map[confirmKey]PendingReset),
		expiry:  defaultConfirmExpiry,
		now:     time.Now,
	}
}

// Request records a pending confirmation for the chat and action.
func (c *Confirmations) Request(chatID int64, action ResetAction, requesterID int64, messageID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[confirmKey{chatID, action}] = PendingReset{
		RequesterID: requesterID,
		MessageID:   messageID,
		CreatedAt:   c.now(),
	}
}

// Take resolves a confirm/cancel press by userID against the pending entry
// for (chat, action). Only a TakeOK result transfers ownership of the entry
// to the caller; unauthorized presses leave the state untouched.
func (c *Confirmations) Take(chatID int64, action ResetAction, userID int64) (PendingReset, TakeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := confirmKey{chatID, action}
	pending, ok := c.pending[key]
	if !ok {
		return PendingReset{}, TakeNone
	}
	if c.now().Sub(pending.CreatedAt) > c.expiry {
		delete(c.pending, key)
		return pending, TakeExpired
	}
	if pending.RequesterID != userID {
		return pending, TakeUnauthorized
	}
	delete(c.pending, key)
	return pending, TakeOK
}
