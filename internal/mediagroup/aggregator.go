package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID   int64
	UserID   int64
	Username string
	Caption  string
	FileIDs  []string
}

type Options struct {
	Debounce  time.Duration
	MaxImages int
	OnFlush   func(Group)
}

// Aggregator collects the photos of a Telegram album, which arrive as
// separate updates, into one Group. A group flushes when no new photo
// arrives within the debounce window, or immediately once it reaches
// MaxImages (the most the model accepts in one call).
type Aggregator struct {
	mu        sync.Mutex
	debounce  time.Duration
	maxImages int
	onFlush   func(Group)
	groups    map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	maxImages := opts.MaxImages
	if maxImages < 1 {
		maxImages = 5
	}

	return &Aggregator{
		debounce:  debounce,
		maxImages: maxImages,
		onFlush:   opts.OnFlush,
		groups:    make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:   item.ChatID,
				UserID:   item.UserID,
				Username: item.Username,
				Caption:  item.Caption,
				FileIDs:  []string{item.FileID},
			},
		}
		a.groups[key] = pg
	} else {
		pg.group.FileIDs = append(pg.group.FileIDs, item.FileID)
		if item.Caption != "" {
			pg.group.Caption = item.Caption
		}
	}

	if len(pg.group.FileIDs) >= a.maxImages {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		delete(a.groups, key)
		group := pg.group
		onFlush := a.onFlush
		a.mu.Unlock()

		if onFlush != nil {
			onFlush(group)
		}
		return
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	a.mu.Unlock()
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
