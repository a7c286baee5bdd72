package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "vein-detect/internal/application"
	"vein-detect/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я помогаю найти вены на снимке.

📸 Отправьте фото или файл изображения, затем /detect.

📋 Команды:
/detect — отправить изображение на анализ
/camera — включить камеру
/capture — снять кадр с камеры
/stopcamera — выключить камеру
/threshold 0.4 — порог уверенности (0.1–0.9)
/theme — переключить тему
/history — история
/show 2 — открыть результат из истории
/download — скачать последний результат
/reset — сбросить выбор
/help — справка`

	msgHelp = `ℹ️ Как пользоваться:

1️⃣ Пришлите фото, файл или снимите кадр (/camera, затем /capture)
2️⃣ При необходимости поменяйте порог: /threshold 0.35
3️⃣ Отправьте /detect и получите размеченное изображение

Результаты сохраняются в истории (/history), последние 24.
Прежний результат можно открыть по номеру: /show 2`

	msgNoCandidate     = "📸 Сначала пришлите изображение или снимите кадр."
	msgPending         = "⏳ Предыдущий снимок ещё обрабатывается."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendPhoto       = "📸 Пришлите изображение для анализа."
	msgReset           = "🔄 Выбор сброшен."
	msgCameraOn        = "🎥 Камера включена. /capture — снять кадр."
	msgCameraOff       = "⏹ Камера выключена."
	msgCameraIdle      = "🎥 Камера не включена. Используйте /camera."
	msgNoResult        = "Результата пока нет."
	msgHistoryEmpty    = "История пуста."
	msgRequestFailed   = "⚠️ Не удалось получить результат. Попробуйте позже."
	msgDownloadFailed  = "⚠️ Не удалось прочитать результат."
	msgThresholdFormat = "Порог должен быть числом, например /threshold 0.35"
	msgShowUsage       = "Укажите номер записи из /history, например /show 2"
	msgHistoryMissing  = "В истории нет такой записи."
	msgResultGone      = "⚠️ Результат этой записи больше недоступен."
)

// Bot представляет Telegram-бота
type Bot struct {
	api            *tgbotapi.BotAPI
	workspace      *app.Workspace
	operatorChatID int64
	httpClient     *http.Client
}

// NewBot создаёт нового бота. operatorChatID 0 разрешает любой чат.
func NewBot(token string, workspace *app.Workspace, operatorChatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	slog.Info("Authorized on account", "username", api.Self.UserName)

	return &Bot{
		api:            api,
		workspace:      workspace,
		operatorChatID: operatorChatID,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Run обрабатывает сообщения по одному, пока не отменён ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.operatorChatID != 0 && msg.Chat.ID != b.operatorChatID {
		slog.Warn("Ignoring message from foreign chat", "chat_id", msg.Chat.ID)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "detect":
		b.handleDetect(ctx, chatID)

	case "camera":
		if err := b.workspace.StartCamera(ctx); err != nil {
			b.sendMessage(chatID, "⚠️ "+err.Error())
			return
		}
		b.sendMessage(chatID, msgCameraOn)

	case "capture":
		candidate, err := b.workspace.CaptureFromCamera(ctx)
		switch {
		case err != nil:
			b.sendMessage(chatID, "⚠️ "+err.Error())
		case candidate == nil:
			b.sendMessage(chatID, msgCameraIdle)
		default:
			b.sendMessage(chatID, candidateText(candidate))
		}

	case "stopcamera":
		b.workspace.StopCamera()
		b.sendMessage(chatID, msgCameraOff)

	case "reset":
		b.workspace.Reset(ctx)
		b.sendMessage(chatID, msgReset)

	case "threshold":
		b.handleThreshold(ctx, chatID, msg.CommandArguments())

	case "theme":
		theme, err := b.workspace.Cache().ToggleTheme(ctx)
		if err != nil {
			slog.Error("Failed to save theme", "err", err)
		}
		b.sendMessage(chatID, fmt.Sprintf("Тема: %s", theme))

	case "history":
		if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
			b.handleShow(ctx, chatID, args)
			return
		}
		b.sendMessage(chatID, formatHistory(b.workspace.Cache().History()))

	case "show":
		b.handleShow(ctx, chatID, msg.CommandArguments())

	case "download":
		b.handleDownload(ctx, chatID)

	case "status":
		b.sendMessage(chatID, b.statusText())

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handlePhoto принимает фото как выбранный файл
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	// Берём файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		slog.Error("Error downloading photo", "err", err)
		b.sendMessage(msg.Chat.ID, "⚠️ Не удалось скачать фото.")
		return
	}

	name := fmt.Sprintf("photo_%d.jpg", msg.MessageID)
	candidate := b.workspace.SelectUpload(ctx, name, "image/jpeg", data)
	b.sendMessage(msg.Chat.ID, candidateText(candidate))
}

// handleDocument принимает файл, перетащенный в чат
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		slog.Error("Error downloading document", "err", err)
		b.sendMessage(msg.Chat.ID, "⚠️ Не удалось скачать файл.")
		return
	}

	candidate := b.workspace.SelectDrop(ctx, doc.FileName, doc.MimeType, data)
	b.sendMessage(msg.Chat.ID, candidateText(candidate))
}

func (b *Bot) handleDetect(ctx context.Context, chatID int64) {
	b.sendMessage(chatID, msgProcessing)

	if _, err := b.workspace.Submit(ctx); err != nil {
		b.sendMessage(chatID, submitErrorText(err))
		return
	}

	name, data, err := b.workspace.Download(ctx)
	if err != nil {
		slog.Error("Error reading result", "err", err)
		b.sendMessage(chatID, msgDownloadFailed)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = "✅ Готово. Сохранено в истории."
	if _, err := b.api.Send(photo); err != nil {
		slog.Error("Error sending result", "err", err)
	}
}

func (b *Bot) handleThreshold(ctx context.Context, chatID int64, args string) {
	cache := b.workspace.Cache()
	args = strings.TrimSpace(args)
	if args == "" {
		b.sendMessage(chatID, "Conf: "+cache.Threshold().Percent())
		return
	}

	v, err := parseThreshold(args)
	if err != nil {
		b.sendMessage(chatID, msgThresholdFormat)
		return
	}
	th, err := cache.SetThreshold(ctx, v)
	if err != nil {
		slog.Error("Failed to save threshold", "err", err)
	}
	b.sendMessage(chatID, "Conf: "+th.Percent())
}

// handleShow делает запись истории текущим результатом и присылает её
func (b *Bot) handleShow(ctx context.Context, chatID int64, args string) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		b.sendMessage(chatID, msgShowUsage)
		return
	}

	if _, err := b.workspace.ShowHistory(ctx, ref); err != nil {
		b.sendMessage(chatID, showErrorText(err))
		return
	}

	name, data, err := b.workspace.Download(ctx)
	if err != nil {
		slog.Error("Error reading result", "err", err)
		b.sendMessage(chatID, msgDownloadFailed)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = "🗂 Результат из истории. /download — скачать."
	if _, err := b.api.Send(photo); err != nil {
		slog.Error("Error sending result", "err", err)
	}
}

func (b *Bot) handleDownload(ctx context.Context, chatID int64) {
	name, data, err := b.workspace.Download(ctx)
	if errors.Is(err, entity.ErrNoResult) {
		b.sendMessage(chatID, msgNoResult)
		return
	}
	if err != nil {
		slog.Error("Error reading result", "err", err)
		b.sendMessage(chatID, msgDownloadFailed)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := b.api.Send(doc); err != nil {
		slog.Error("Error sending document", "err", err)
	}
}

func (b *Bot) statusText() string {
	var sb strings.Builder
	if c := b.workspace.Candidate(); c != nil {
		fmt.Fprintf(&sb, "Выбрано: %s\n", c.Name)
	}
	if b.workspace.Result() != nil {
		sb.WriteString("Есть результат: /download\n")
	}
	fmt.Fprintf(&sb, "Камера: %s\n", b.workspace.CameraState())
	fmt.Fprintf(&sb, "Conf: %s\n", b.workspace.Cache().Threshold().Percent())
	if status := b.workspace.Status(); status != "" {
		fmt.Fprintf(&sb, "Ошибка: %s\n", status)
	}
	return strings.TrimSpace(sb.String())
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Error sending message", "err", err)
	}
}

func candidateText(c *entity.Candidate) string {
	return fmt.Sprintf("🖼 Изображение %s получено (%d байт). /detect — отправить на анализ.", c.Name, c.Size())
}

func formatHistory(entries []entity.HistoryEntry) string {
	if len(entries) == 0 {
		return msgHistoryEmpty
	}
	var sb strings.Builder
	sb.WriteString("🗂 История:\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, e.Name, e.CreatedAt.Format("02.01.2006 15:04"))
	}
	return strings.TrimSpace(sb.String())
}

// parseThreshold разбирает порог из аргумента команды, допускает запятую
func parseThreshold(args string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(args), ",", "."), 64)
}

// submitErrorText переводит ошибку отправки в сообщение для оператора
func submitErrorText(err error) string {
	switch {
	case errors.Is(err, entity.ErrNoCandidate):
		return msgNoCandidate
	case errors.Is(err, entity.ErrSubmissionPending):
		return msgPending
	default:
		return msgRequestFailed
	}
}

func showErrorText(err error) string {
	switch {
	case errors.Is(err, entity.ErrHistoryEntryNotFound):
		return msgHistoryMissing
	case errors.Is(err, entity.ErrArtifactNotFound):
		return msgResultGone
	default:
		return msgDownloadFailed
	}
}
