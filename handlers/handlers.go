package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"anon_relay_bot/album"
	"anon_relay_bot/config"
	"anon_relay_bot/database"
	"anon_relay_bot/gate"
	"anon_relay_bot/messages"
	"anon_relay_bot/notify"
	"anon_relay_bot/tglog"
	"anon_relay_bot/workflow"
)

type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	gate     *gate.Controller
	wf       *workflow.Workflow
	notifier *notify.Router
	albums   *album.Aggregator
}

func New(b *bot.Bot, cfg *config.Config, gc *gate.Controller, wf *workflow.Workflow, notifier *notify.Router) *Handler {
	h := &Handler{bot: b, cfg: cfg, gate: gc, wf: wf, notifier: notifier}
	h.albums = album.New(cfg.AlbumDelay, h.onAlbumFlush)
	return h
}

// Stop гасит таймеры альбомов при завершении.
func (h *Handler) Stop() {
	h.albums.Stop()
}

func (h *Handler) OnMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	defer h.recoverPanic(update)

	if update.Message == nil {
		return
	}
	msg := update.Message

	// Бот работает только в личке; сообщения из групп игнорируются
	if msg.Chat.Type != "private" || msg.From == nil || msg.From.IsBot {
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		h.onCommand(ctx, msg)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		// Telegram присылает несколько размеров, берём самый большой
		photo := msg.Photo[len(msg.Photo)-1]
		h.onMedia(ctx, msg, database.MediaItem{Kind: database.KindPhoto, Ref: photo.FileID})
	case msg.Video != nil:
		h.onMedia(ctx, msg, database.MediaItem{Kind: database.KindVideo, Ref: msg.Video.FileID})
	case msg.Animation != nil:
		h.onAnimation(ctx, msg)
	case msg.Text != "":
		h.onText(ctx, msg)
	default:
		h.send(ctx, msg.Chat.ID, messages.MsgUnsupported)
	}
}

func (h *Handler) OnCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	defer h.recoverPanic(update)

	if update.CallbackQuery == nil {
		return
	}
	cb := update.CallbackQuery

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID})
	if err != nil {
		log.Printf("Ошибка ответа на callback: %v", err)
	}

	action, id, ok := parseDecision(cb.Data)
	if !ok {
		return
	}

	switch action {
	case "approve":
		err = h.wf.Approve(ctx, cb.From.ID, id)
	case "reject":
		err = h.wf.Reject(ctx, cb.From.ID, id)
	}

	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrUnauthorized):
		// Кнопки видит только модератор, чужие нажатия молча игнорируются
	case errors.Is(err, workflow.ErrNotFound):
		h.send(ctx, cb.From.ID, messages.MsgSubmissionGone)
	default:
		tglog.Alert("Ошибка обработки решения по заявке %d: %v", id, err)
	}
}

func (h *Handler) onCommand(ctx context.Context, msg *models.Message) {
	cmd := msg.Text
	if i := strings.IndexAny(cmd, " @"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		h.send(ctx, msg.Chat.ID, messages.MsgWelcome)
	case "/help":
		h.send(ctx, msg.Chat.ID, messages.MsgHelp)
	case "/on", "/off":
		err := h.gate.SetActive(ctx, msg.From.ID, cmd == "/on")
		switch {
		case errors.Is(err, gate.ErrUnauthorized):
			// Не модератор — молча игнорируем
		case err != nil:
			tglog.Alert("Ошибка переключения приёма: %v", err)
			h.send(ctx, msg.Chat.ID, messages.MsgError)
		case cmd == "/on":
			h.send(ctx, msg.Chat.ID, messages.MsgGateOnAdmin)
		default:
			h.send(ctx, msg.Chat.ID, messages.MsgGateOffAdmin)
		}
	case "/status":
		if msg.From.ID != h.cfg.AdminID {
			return
		}
		h.send(ctx, msg.Chat.ID, messages.FormatGateStatus(h.gate.Allowed()))
	default:
		h.send(ctx, msg.Chat.ID, messages.MsgHelp)
	}
}

// onMedia буферизует фото и видео: серия от одного отправителя склеится
// в один альбом и уйдёт одной заявкой.
func (h *Handler) onMedia(ctx context.Context, msg *models.Message, item database.MediaItem) {
	if !h.gate.Allowed() {
		h.send(ctx, msg.Chat.ID, messages.MsgDisabled)
		return
	}
	h.albums.Add(submitterFrom(msg), item, msg.Caption)
}

func (h *Handler) onAlbumFlush(ctx context.Context, from database.Submitter, items []database.MediaItem, caption string) {
	_, err := h.wf.Create(ctx, from, items, caption)
	switch {
	case errors.Is(err, workflow.ErrGateClosed):
		// Приём закрыли, пока копился альбом
		h.send(ctx, from.ID, messages.MsgDisabled)
	case err != nil:
		tglog.Alert("Ошибка создания заявки от %d: %v", from.ID, err)
		h.send(ctx, from.ID, messages.MsgError)
	default:
		h.send(ctx, from.ID, messages.MsgAccepted)
	}
}

// onAnimation: анимации не проходят модерацию. По политике они либо сразу
// пересылаются модератору с эхом отправителю (без записи в БД и без учёта
// выключателя), либо отклоняются как неподдерживаемые.
func (h *Handler) onAnimation(ctx context.Context, msg *models.Message) {
	if !h.cfg.AllowAnimations {
		h.send(ctx, msg.Chat.ID, messages.MsgUnsupported)
		return
	}

	item := database.MediaItem{Kind: database.KindAnimation, Ref: msg.Animation.FileID}
	note := messages.FormatAnimationForAdmin(username(msg))
	if err := h.notifier.SendMedia(ctx, h.cfg.AdminID, item, note); err != nil {
		tglog.Alert("Ошибка пересылки анимации модератору: %v", err)
		h.send(ctx, msg.Chat.ID, messages.MsgError)
		return
	}
	if err := h.notifier.SendMedia(ctx, msg.Chat.ID, item, ""); err != nil {
		log.Printf("Ошибка эха анимации пользователю %d: %v", msg.Chat.ID, err)
	}
}

// onText: текст от модератора — причина отклонения, от остальных — текстовая заявка.
func (h *Handler) onText(ctx context.Context, msg *models.Message) {
	if msg.From.ID == h.cfg.AdminID {
		err := h.wf.SupplyReason(ctx, msg.From.ID, msg.Text)
		switch {
		case errors.Is(err, workflow.ErrNoPendingRejection):
			h.send(ctx, msg.Chat.ID, messages.MsgNoPendingRejection)
		case errors.Is(err, workflow.ErrNotFound):
			h.send(ctx, msg.Chat.ID, messages.MsgSubmissionGone)
		case err != nil:
			tglog.Alert("Ошибка записи причины отклонения: %v", err)
			h.send(ctx, msg.Chat.ID, messages.MsgError)
		}
		return
	}

	item := database.MediaItem{Kind: database.KindText, Ref: msg.Text}
	_, err := h.wf.Create(ctx, submitterFrom(msg), []database.MediaItem{item}, "")
	switch {
	case errors.Is(err, workflow.ErrGateClosed):
		h.send(ctx, msg.Chat.ID, messages.MsgDisabled)
	case err != nil:
		tglog.Alert("Ошибка создания текстовой заявки от %d: %v", msg.From.ID, err)
		h.send(ctx, msg.Chat.ID, messages.MsgError)
	default:
		h.send(ctx, msg.Chat.ID, messages.MsgAccepted)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.notifier.SendText(ctx, chatID, text); err != nil {
		log.Printf("Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}

// recoverPanic: неожиданный сбой логируется и уходит модератору, пользователь
// видит только общее извинение.
func (h *Handler) recoverPanic(update *models.Update) {
	r := recover()
	if r == nil {
		return
	}
	tglog.Alert("Паника в обработчике: %v", r)

	var chatID int64
	if update.Message != nil {
		chatID = update.Message.Chat.ID
	} else if update.CallbackQuery != nil {
		chatID = update.CallbackQuery.From.ID
	}
	if chatID != 0 && chatID != h.cfg.AdminID {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.send(ctx, chatID, messages.MsgError)
	}
}

func parseDecision(data string) (action string, id int64, ok bool) {
	action, rawID, found := strings.Cut(data, "_")
	if !found || (action != "approve" && action != "reject") {
		return "", 0, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return action, id, true
}

func submitterFrom(msg *models.Message) database.Submitter {
	return database.Submitter{
		ID:        msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
	}
}

func username(msg *models.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.Username
}
