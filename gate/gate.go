// Package gate — общий выключатель приёма заявок. Состояние хранится в БД
// и кэшируется в памяти: чтение идёт из кэша, запись сначала в БД.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"anon_relay_bot/messages"
	"anon_relay_bot/tglog"
)

var ErrUnauthorized = errors.New("действие доступно только модератору")

type Store interface {
	GetGateActive(ctx context.Context) (bool, error)
	SetGateActive(ctx context.Context, active bool) error
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Controller struct {
	mu     sync.RWMutex
	active bool

	store    Store
	notifier Notifier
	adminID  int64
	groupID  int64
}

func New(ctx context.Context, store Store, notifier Notifier, adminID, groupID int64) (*Controller, error) {
	active, err := store.GetGateActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение состояния бота: %w", err)
	}
	return &Controller{
		active:   active,
		store:    store,
		notifier: notifier,
		adminID:  adminID,
		groupID:  groupID,
	}, nil
}

// Allowed — можно ли сейчас принимать новые заявки.
func (c *Controller) Allowed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive включает или выключает приём. Разрешено только модератору.
// Новое состояние анонсируется в группу; ошибка анонса не откатывает смену.
func (c *Controller) SetActive(ctx context.Context, actorID int64, active bool) error {
	if actorID != c.adminID {
		return ErrUnauthorized
	}

	if err := c.store.SetGateActive(ctx, active); err != nil {
		return fmt.Errorf("сохранение состояния бота: %w", err)
	}

	c.mu.Lock()
	c.active = active
	c.mu.Unlock()

	broadcast := messages.MsgGateOffBroadcast
	if active {
		broadcast = messages.MsgGateOnBroadcast
	}
	if err := c.notifier.SendText(ctx, c.groupID, broadcast); err != nil {
		tglog.Alert("Ошибка анонса состояния бота в группу: %v", err)
	}
	return nil
}
