// Package workflow — машина состояний модерации: заявка создаётся в pending
// и единственным переходом уходит в approved или rejected. Терминальные
// состояния окончательны.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"anon_relay_bot/database"
	"anon_relay_bot/messages"
	"anon_relay_bot/tglog"
)

var (
	ErrUnauthorized       = errors.New("действие доступно только модератору")
	ErrGateClosed         = errors.New("приём заявок отключён")
	ErrNotFound           = errors.New("заявка не найдена или уже обработана")
	ErrNoPendingRejection = errors.New("нет отклонения, ожидающего причину")
)

// mediaGroupLimit — лимит Telegram на размер медиагруппы.
const mediaGroupLimit = 10

type Store interface {
	InsertSubmission(ctx context.Context, s *database.Submission) (int64, error)
	GetSubmission(ctx context.Context, id int64) (*database.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id int64, status database.Status, reason *string) error
}

type Gate interface {
	Allowed() bool
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string) error
	SendMediaGroup(ctx context.Context, chatID int64, items []database.MediaItem, caption string) error
	SendReviewMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string, submissionID int64) error
	SendReviewPrompt(ctx context.Context, chatID int64, text string, submissionID int64) error
}

type Workflow struct {
	store    Store
	gate     Gate
	notifier Notifier

	adminID          int64
	groupID          int64
	botUsername      string
	preserveCaptions bool

	// У модератора не больше одного отклонения, ожидающего причину.
	// Повторное отклонение молча перезаписывает ссылку — прежняя заявка
	// остаётся в pending (поведение исходного бота, см. DESIGN.md).
	mu            sync.Mutex
	pendingReason map[int64]int64
}

func New(store Store, gate Gate, notifier Notifier, adminID, groupID int64, botUsername string, preserveCaptions bool) *Workflow {
	return &Workflow{
		store:            store,
		gate:             gate,
		notifier:         notifier,
		adminID:          adminID,
		groupID:          groupID,
		botUsername:      botUsername,
		preserveCaptions: preserveCaptions,
		pendingReason:    make(map[int64]int64),
	}
}

// Create сохраняет новую заявку и отправляет её модератору на проверку.
// При выключенном приёме возвращает ErrGateClosed, ничего не сохраняя.
func (w *Workflow) Create(ctx context.Context, from database.Submitter, items []database.MediaItem, caption string) (int64, error) {
	if !w.gate.Allowed() {
		return 0, ErrGateClosed
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("пустая заявка")
	}

	sub := &database.Submission{
		UserID:    from.ID,
		Username:  nullable(from.Username),
		FirstName: nullable(from.FirstName),
		Items:     items,
		Caption:   nullable(caption),
	}
	id, err := w.store.InsertSubmission(ctx, sub)
	if err != nil {
		return 0, fmt.Errorf("сохранение заявки: %w", err)
	}

	w.sendReview(ctx, from, items, caption, id)
	return id, nil
}

// sendReview — шапка с данными отправителя плюс превью контента с кнопками.
// Ошибки доставки не отменяют уже созданную заявку.
func (w *Workflow) sendReview(ctx context.Context, from database.Submitter, items []database.MediaItem, caption string, id int64) {
	header := messages.FormatReviewHeader(from.ID, from.Username, from.FirstName, id, len(items), caption)

	switch {
	case len(items) == 1 && items[0].Kind == database.KindText:
		text := header + "\n\n📝 " + items[0].Ref
		if err := w.notifier.SendReviewPrompt(ctx, w.adminID, text, id); err != nil {
			tglog.Alert("Ошибка отправки заявки %d модератору: %v", id, err)
		}
	case len(items) == 1:
		if err := w.notifier.SendText(ctx, w.adminID, header); err != nil {
			tglog.Alert("Ошибка отправки заявки %d модератору: %v", id, err)
		}
		if err := w.notifier.SendReviewMedia(ctx, w.adminID, items[0], caption, id); err != nil {
			tglog.Alert("Ошибка отправки медиа заявки %d модератору: %v", id, err)
		}
	default:
		if err := w.notifier.SendText(ctx, w.adminID, header); err != nil {
			tglog.Alert("Ошибка отправки заявки %d модератору: %v", id, err)
		}
		for _, chunk := range chunkItems(items) {
			if err := w.notifier.SendMediaGroup(ctx, w.adminID, chunk, caption); err != nil {
				tglog.Alert("Ошибка отправки альбома заявки %d модератору: %v", id, err)
			}
			caption = "" // подпись только на первой группе
		}
		prompt := fmt.Sprintf("🔗 Решение по заявке <code>%d</code>:", id)
		if err := w.notifier.SendReviewPrompt(ctx, w.adminID, prompt, id); err != nil {
			tglog.Alert("Ошибка отправки кнопок заявки %d модератору: %v", id, err)
		}
	}
}

// Approve публикует заявку в группе анонимно и уведомляет стороны.
func (w *Workflow) Approve(ctx context.Context, actorID, submissionID int64) error {
	sub, err := w.lookupPending(ctx, actorID, submissionID)
	if err != nil {
		return err
	}

	if err := w.store.UpdateSubmissionStatus(ctx, submissionID, database.StatusApproved, nil); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("обновление статуса заявки %d: %w", submissionID, err)
	}

	// Переход состоялся; сбои доставки дальше только репортятся
	w.publish(ctx, sub)

	if err := w.notifier.SendText(ctx, sub.UserID, messages.MsgApprovedUser); err != nil {
		tglog.Alert("Ошибка уведомления пользователя %d об одобрении: %v", sub.UserID, err)
	}
	if err := w.notifier.SendText(ctx, w.adminID, messages.MsgApprovedAdmin); err != nil {
		tglog.Alert("Ошибка подтверждения модератору: %v", err)
	}
	return nil
}

// publish отправляет контент заявки в группу без каких-либо данных отправителя.
func (w *Workflow) publish(ctx context.Context, sub *database.Submission) {
	caption := ""
	if w.preserveCaptions && sub.Caption != nil {
		caption = *sub.Caption
	}

	if len(sub.Items) == 1 && sub.Items[0].Kind == database.KindText {
		text := messages.FormatAnonymousText(sub.Items[0].Ref, w.botUsername)
		if err := w.notifier.SendText(ctx, w.groupID, text); err != nil {
			tglog.Alert("Ошибка публикации заявки %d: %v", sub.ID, err)
		}
		return
	}

	anonCaption := messages.FormatAnonymousCaption(caption, w.botUsername)
	if len(sub.Items) == 1 {
		if err := w.notifier.SendMedia(ctx, w.groupID, sub.Items[0], anonCaption); err != nil {
			tglog.Alert("Ошибка публикации заявки %d: %v", sub.ID, err)
		}
		return
	}

	for _, chunk := range chunkItems(sub.Items) {
		if err := w.notifier.SendMediaGroup(ctx, w.groupID, chunk, anonCaption); err != nil {
			tglog.Alert("Ошибка публикации заявки %d: %v", sub.ID, err)
		}
		anonCaption = ""
	}
}

// Reject не переводит заявку сразу: сначала модератор присылает причину.
func (w *Workflow) Reject(ctx context.Context, actorID, submissionID int64) error {
	if _, err := w.lookupPending(ctx, actorID, submissionID); err != nil {
		return err
	}

	w.mu.Lock()
	w.pendingReason[actorID] = submissionID
	w.mu.Unlock()

	if err := w.notifier.SendText(ctx, w.adminID, messages.MsgAskReason); err != nil {
		tglog.Alert("Ошибка запроса причины отклонения: %v", err)
	}
	return nil
}

// SupplyReason завершает двухфазное отклонение: заявка уходит в rejected,
// пользователь получает причину. Если заявка пропала, маркер всё равно
// очищается, чтобы модератор не застрял.
func (w *Workflow) SupplyReason(ctx context.Context, actorID int64, reason string) error {
	if actorID != w.adminID {
		return ErrUnauthorized
	}

	w.mu.Lock()
	submissionID, ok := w.pendingReason[actorID]
	w.mu.Unlock()
	if !ok {
		return ErrNoPendingRejection
	}

	sub, err := w.store.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			w.clearPendingReason(actorID)
			return ErrNotFound
		}
		return fmt.Errorf("чтение заявки %d: %w", submissionID, err)
	}

	if err := w.store.UpdateSubmissionStatus(ctx, submissionID, database.StatusRejected, &reason); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			w.clearPendingReason(actorID)
			return ErrNotFound
		}
		return fmt.Errorf("обновление статуса заявки %d: %w", submissionID, err)
	}

	w.clearPendingReason(actorID)

	if err := w.notifier.SendText(ctx, sub.UserID, messages.FormatRejectedUser(reason)); err != nil {
		tglog.Alert("Ошибка уведомления пользователя %d об отклонении: %v", sub.UserID, err)
	}
	if err := w.notifier.SendText(ctx, w.adminID, messages.MsgRejectedAdmin); err != nil {
		tglog.Alert("Ошибка подтверждения модератору: %v", err)
	}
	return nil
}

// HasPendingReason — ждёт ли модератор сейчас причину отклонения.
func (w *Workflow) HasPendingReason(actorID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pendingReason[actorID]
	return ok
}

func (w *Workflow) clearPendingReason(actorID int64) {
	w.mu.Lock()
	delete(w.pendingReason, actorID)
	w.mu.Unlock()
}

// lookupPending проверяет права и возвращает заявку, если она ещё в pending.
func (w *Workflow) lookupPending(ctx context.Context, actorID, submissionID int64) (*database.Submission, error) {
	if actorID != w.adminID {
		return nil, ErrUnauthorized
	}
	sub, err := w.store.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение заявки %d: %w", submissionID, err)
	}
	if sub.Status != database.StatusPending {
		return nil, ErrNotFound
	}
	return sub, nil
}

func chunkItems(items []database.MediaItem) [][]database.MediaItem {
	var chunks [][]database.MediaItem
	for len(items) > mediaGroupLimit {
		chunks = append(chunks, items[:mediaGroupLimit])
		items = items[mediaGroupLimit:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
