// Package notify — доставка сообщений и медиа в Telegram.
package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"anon_relay_bot/database"
)

type Router struct {
	bot *bot.Bot
}

func New(b *bot.Bot) *Router {
	return &Router{bot: b}
}

func (r *Router) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := r.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	return err
}

func (r *Router) SendMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string) error {
	switch item.Kind {
	case database.KindPhoto:
		_, err := r.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:    chatID,
			Photo:     &models.InputFileString{Data: item.Ref},
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
		})
		return err
	case database.KindVideo:
		_, err := r.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:    chatID,
			Video:     &models.InputFileString{Data: item.Ref},
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
		})
		return err
	case database.KindAnimation:
		_, err := r.bot.SendAnimation(ctx, &bot.SendAnimationParams{
			ChatID:    chatID,
			Animation: &models.InputFileString{Data: item.Ref},
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
		})
		return err
	case database.KindText:
		return r.SendText(ctx, chatID, item.Ref)
	}
	return fmt.Errorf("неизвестный тип медиа: %s", item.Kind)
}

// SendMediaGroup отправляет один альбом (до 10 элементов, лимит Telegram).
// Подпись вешается на первый элемент.
func (r *Router) SendMediaGroup(ctx context.Context, chatID int64, items []database.MediaItem, caption string) error {
	media := make([]models.InputMedia, 0, len(items))
	for i, it := range items {
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		switch it.Kind {
		case database.KindPhoto:
			media = append(media, &models.InputMediaPhoto{
				Media:     it.Ref,
				Caption:   itemCaption,
				ParseMode: models.ParseModeHTML,
			})
		case database.KindVideo:
			media = append(media, &models.InputMediaVideo{
				Media:     it.Ref,
				Caption:   itemCaption,
				ParseMode: models.ParseModeHTML,
			})
		default:
			return fmt.Errorf("тип %s не поддерживается в альбоме", it.Kind)
		}
	}

	_, err := r.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: chatID,
		Media:  media,
	})
	return err
}

// SendReviewMedia отправляет модератору одиночное медиа с кнопками решения.
func (r *Router) SendReviewMedia(ctx context.Context, chatID int64, item database.MediaItem, caption string, submissionID int64) error {
	markup := reviewMarkup(submissionID)
	switch item.Kind {
	case database.KindPhoto:
		_, err := r.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      chatID,
			Photo:       &models.InputFileString{Data: item.Ref},
			Caption:     caption,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: markup,
		})
		return err
	case database.KindVideo:
		_, err := r.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:      chatID,
			Video:       &models.InputFileString{Data: item.Ref},
			Caption:     caption,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: markup,
		})
		return err
	}
	return fmt.Errorf("тип %s не поддерживается для ревью", item.Kind)
}

// SendReviewPrompt — текстовое сообщение с кнопками решения. Используется
// для альбомов (Telegram не позволяет кнопки на медиагруппе) и текстовых заявок.
func (r *Router) SendReviewPrompt(ctx context.Context, chatID int64, text string, submissionID int64) error {
	_, err := r.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: reviewMarkup(submissionID),
	})
	return err
}

func reviewMarkup(submissionID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Одобрить", CallbackData: fmt.Sprintf("approve_%d", submissionID)},
			{Text: "❌ Отклонить", CallbackData: fmt.Sprintf("reject_%d", submissionID)},
		}},
	}
}
