package messages

import "fmt"

const (
	MsgWelcome = `👋 <b>Добро пожаловать!</b>

📋 <b>Как это работает:</b>
1️⃣ Пришлите фото, видео или текст.
2️⃣ Материал проверит модератор.
3️⃣ После одобрения он будет опубликован в группе.

🔒 <b>Все отправки полностью анонимны!</b> Никто не узнает, кто прислал материал.`

	MsgHelp = `📋 Пришлите фото, видео или текст — материал уйдёт модератору.
Несколько фото подряд склеиваются в один альбом.

🔒 Публикация анонимная: ваше имя не попадёт в группу.`

	MsgDisabled = `⚠️ Приём материалов временно отключён. Попробуйте позже.`

	MsgAccepted = `✅ Ваш материал отправлен на модерацию. Отправка анонимная — никто не узнает, кто его прислал.`

	MsgUnsupported = `❌ Пришлите, пожалуйста, фото, видео или текст.`

	MsgApprovedUser = `✅ Ваш материал одобрен и опубликован в группе. Отправка была анонимной.`

	MsgApprovedAdmin = `✅ Одобрено: материал отправлен в группу.`

	MsgRejectedAdmin = `❌ Отклонение записано и отправлено пользователю.`

	MsgAskReason = `❌ Отправьте причину отклонения обычным текстовым сообщением.`

	MsgNoPendingRejection = `⚠️ Сейчас нет отклонений, ожидающих причину.`

	MsgSubmissionGone = `⚠️ Заявка не найдена или уже обработана.`

	MsgGateOnBroadcast = `🚦 Бот <b>включён</b>. Приём материалов открыт!`

	MsgGateOffBroadcast = `🚦 Бот <b>выключен</b>. Приём материалов временно закрыт!`

	MsgGateOnAdmin = `✅ Бот включён.`

	MsgGateOffAdmin = `✅ Бот выключен.`

	MsgError = `❌ Что-то пошло не так. Попробуйте позже.`
)

func FormatGateStatus(active bool) string {
	if active {
		return `🚦 Приём материалов сейчас <b>включён</b>.`
	}
	return `🚦 Приём материалов сейчас <b>выключен</b>.`
}

// FormatReviewHeader — шапка заявки для модератора. Данные отправителя
// видит только он, в группу они не уходят.
func FormatReviewHeader(userID int64, username, firstName string, submissionID int64, itemCount int, caption string) string {
	if username == "" {
		username = "без username"
	}
	if firstName == "" {
		firstName = "без имени"
	}
	text := fmt.Sprintf(`📩 <b>Новая заявка на модерацию (анонимная отправка):</b>

🔑 <b>UserID:</b> <code>%d</code>
👤 <b>Username:</b> @%s
🖋 <b>Имя:</b> %s
🔗 <b>Заявка №</b> <code>%d</code>
📎 <b>Элементов:</b> %d`, userID, username, firstName, submissionID, itemCount)
	if caption != "" {
		text += fmt.Sprintf("\n📝 <b>Подпись:</b> %s", caption)
	}
	return text
}

func FormatRejectedUser(reason string) string {
	return fmt.Sprintf(`❌ Ваш материал отклонён.

📝 <b>Причина:</b> %s

⚠️ Отправка была анонимной: никто не узнает, кто его прислал.`, reason)
}

// FormatAnonymousCaption — подпись для публикации в группе: метка анонимности
// плюс (опционально) подпись автора.
func FormatAnonymousCaption(caption, botUsername string) string {
	marker := fmt.Sprintf("📩 #анонимно\n@%s", botUsername)
	if caption == "" {
		return marker
	}
	return caption + "\n\n" + marker
}

func FormatAnonymousText(text, botUsername string) string {
	return fmt.Sprintf("%s\n\n📩 #анонимно\n@%s", text, botUsername)
}

func FormatAnimationForAdmin(username string) string {
	if username == "" {
		username = "без username"
	}
	return fmt.Sprintf(`🎞 Анимация от @%s (без модерации)`, username)
}
