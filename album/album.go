// Package album склеивает серию медиа от одного отправителя в один альбом.
// Каждое новое медиа перезапускает таймер; когда пауза превышает задержку,
// накопленный буфер целиком уходит одной заявкой.
package album

import (
	"context"
	"sync"
	"time"

	"anon_relay_bot/database"
)

const flushTimeout = 30 * time.Second

// FlushFunc получает готовый альбом: все элементы в порядке прихода и
// подпись первого элемента.
type FlushFunc func(ctx context.Context, from database.Submitter, items []database.MediaItem, caption string)

type buffer struct {
	from    database.Submitter
	items   []database.MediaItem
	caption string
	timer   *time.Timer
	seq     uint64
}

type Aggregator struct {
	mu      sync.Mutex
	buffers map[int64]*buffer
	seq     uint64
	delay   time.Duration
	flush   FlushFunc
}

func New(delay time.Duration, flush FlushFunc) *Aggregator {
	return &Aggregator{
		buffers: make(map[int64]*buffer),
		delay:   delay,
		flush:   flush,
	}
}

// Add добавляет медиа в буфер отправителя. Подпись запоминается только у
// первого элемента, остальные отбрасываются. Уже взведённый таймер
// останавливается и взводится заново.
func (a *Aggregator) Add(from database.Submitter, item database.MediaItem, caption string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.buffers[from.ID]
	if buf == nil {
		buf = &buffer{}
		a.buffers[from.ID] = buf
	}
	if len(buf.items) == 0 {
		buf.from = from
		buf.caption = caption
	}
	buf.items = append(buf.items, item)

	if buf.timer != nil {
		buf.timer.Stop()
	}
	// seq отсекает сработавший, но ещё не получивший мьютекс старый таймер.
	// Счётчик общий на агрегатор, чтобы старый таймер не совпал по номеру
	// с новым буфером того же отправителя.
	a.seq++
	buf.seq = a.seq
	seq := a.seq
	userID := from.ID
	buf.timer = time.AfterFunc(a.delay, func() {
		a.flushUser(userID, seq)
	})
}

func (a *Aggregator) flushUser(userID int64, seq uint64) {
	a.mu.Lock()
	buf := a.buffers[userID]
	if buf == nil || buf.seq != seq || len(buf.items) == 0 {
		a.mu.Unlock()
		return
	}
	from := buf.from
	items := buf.items
	caption := buf.caption
	delete(a.buffers, userID)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	a.flush(ctx, from, items, caption)
}

// Stop останавливает все взведённые таймеры. Несброшенные буферы пропадают.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for userID, buf := range a.buffers {
		if buf.timer != nil {
			buf.timer.Stop()
		}
		delete(a.buffers, userID)
	}
}
