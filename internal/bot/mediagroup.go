package bot

import (
	"sync"
	"time"

	"parkbot/internal/telegram"
)

// defaultDebounce is how long a media group waits for further items before
// the accumulated batch is flushed.
const defaultDebounce = 1 * time.Second

// GroupItem is one photo or document belonging to a media group.
type GroupItem struct {
	ChatID      int64
	From        telegram.User
	FileID      string
	FileName    string
	ContentType string
}

// Collector accumulates media-group items. Each arrival re-arms the group's
// debounce timer; once the window elapses with no new arrival, the whole
// batch is handed to the flush callback exactly once.
type Collector struct {
	mu       sync.Mutex
	groups   map[string]*group
	debounce time.Duration
	flush    func(groupID string, items []GroupItem)
}

type group struct {
	items []GroupItem
	timer *time.Timer
}

// NewCollector creates a Collector with the default debounce window.
func NewCollector(flush func(groupID string, items []GroupItem)) *Collector {
	return NewCollectorWithDebounce(defaultDebounce, flush)
}

// NewCollectorWithDebounce creates a Collector with a custom debounce window
// for testing.
func NewCollectorWithDebounce(debounce time.Duration, flush func(groupID string, items []GroupItem)) *Collector {
	return &Collector{
		groups:   make(map[string]*group),
		debounce: debounce,
		flush:    flush,
	}
}

// Add accumulates an item under its group id and (re)starts the group's
// debounce window. It reports whether the item opened a new group.
func (c *Collector) Add(groupID string, item GroupItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupID]
	if !ok {
		g = &group{}
		g.timer = time.AfterFunc(c.debounce, func() { c.fire(groupID) })
		c.groups[groupID] = g
		g.items = append(g.items, item)
		return true
	}
	g.items = append(g.items, item)
	g.timer.Reset(c.debounce)
	return false
}

// fire hands the accumulated batch to the flush callback and forgets the
// group. Runs on the timer goroutine.
func (c *Collector) fire(groupID string) {
	c.mu.Lock()
	g, ok := c.groups[groupID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.groups, groupID)
	items := g.items
	c.mu.Unlock()

	c.flush(groupID, items)
}
