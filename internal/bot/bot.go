package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"parkbot/internal/parking"
	"parkbot/internal/scanning"
	"parkbot/internal/telegram"
)

const (
	pollTimeoutSec = 60
	pollRetryDelay = 3 * time.Second

	genericErrorText = "An error occurred, please try again."
	stillProcessing  = "Still processing your previous submission, please wait."
)

// Transport is the outbound chat surface the bot needs.
type Transport interface {
	GetUpdates(offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(chatID int64, text string) (int, error)
	SendMessageWithKeyboard(chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (int, error)
	EditMessageText(chatID int64, messageID int, text string) error
	AnswerCallbackQuery(callbackID, text string, showAlert bool) error
	GetFile(fileID string) (*telegram.File, error)
	DownloadFile(filePath string) ([]byte, error)
}

// OffsetStore persists the getUpdates offset between runs.
type OffsetStore interface {
	Offset() (int64, error)
	SetOffset(offset int64) error
}

// Bot dispatches inbound Telegram updates to the accounting engine and the
// confirmation flows. One goroutine per update; per-user exclusion comes from
// the Gate, batch grouping from the Collector.
type Bot struct {
	transport  Transport
	offsets    OffsetStore
	db         parking.DB
	service    *parking.Service
	recognizer scanning.Recognizer
	extractor  scanning.Extractor
	archive    Archive

	gate     *Gate
	groups   *Collector
	confirms *Confirmations
}

// New wires a Bot from its collaborators. archive may be nil to disable
// ticket archiving.
func New(transport Transport, offsets OffsetStore, db parking.DB,
	service *parking.Service, recognizer scanning.Recognizer,
	extractor scanning.Extractor, archive Archive) *Bot {

	b := &Bot{
		transport:  transport,
		offsets:    offsets,
		db:         db,
		service:    service,
		recognizer: recognizer,
		extractor:  extractor,
		archive:    archive,
		gate:       NewGate(),
		confirms:   NewConfirmations(),
	}
	b.groups = NewCollector(b.flushGroup)
	return b
}

// Run polls for updates until ctx is cancelled. Handler failures are
// reported to the affected chat and never stop the loop.
func (b *Bot) Run(ctx context.Context) error {
	offset, err := b.offsets.Offset()
	if err != nil {
		return fmt.Errorf("loading update offset: %w", err)
	}
	slog.Info("Bot started", "offset", offset)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.transport.GetUpdates(offset, pollTimeoutSec)
		if err != nil {
			slog.Warn("Failed to fetch updates", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go b.handleUpdate(update)
		}

		if len(updates) > 0 {
			if err := b.offsets.SetOffset(offset); err != nil {
				slog.Warn("Failed to persist update offset", "offset", offset, "error", err)
			}
		}
	}
}

// handleUpdate routes one update. Runs on its own goroutine so a slow OCR or
// store call never blocks unrelated chats.
func (b *Bot) handleUpdate(update telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && (len(update.Message.Photo) > 0 || update.Message.Document != nil):
		b.handleSubmission(update.Message)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		b.handleCommand(update.Message)
	}
}

// --- commands ---

func (b *Bot) handleCommand(msg *telegram.Message) {
	command := strings.ToLower(strings.TrimPrefix(strings.Fields(msg.Text)[0], "/"))
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}
	chatID := msg.Chat.ID

	switch command {
	case "current":
		b.sendCurrent(chatID)
	case "history":
		b.sendHistory(chatID)
	case "reset":
		b.requestReset(chatID, msg.From, ResetMonth)
	case "kaboom":
		b.requestReset(chatID, msg.From, ResetAll)
	case "help", "start":
		b.send(chatID, helpText)
	}
}

func (b *Bot) sendCurrent(chatID int64) {
	sessions, err := b.db.CurrentMonthSessions(chatID)
	if err != nil {
		slog.Error("Failed to list current month sessions", "chat_id", chatID, "error", err)
		b.send(chatID, genericErrorText)
		return
	}
	total, err := b.db.CurrentMonthTotal(chatID)
	if err != nil {
		slog.Error("Failed to fetch current month total", "chat_id", chatID, "error", err)
		b.send(chatID, genericErrorText)
		return
	}
	b.send(chatID, formatCurrent(sessions, total))
}

func (b *Bot) sendHistory(chatID int64) {
	totals, err := b.db.MonthlyHistory(chatID, 12)
	if err != nil {
		slog.Error("Failed to fetch monthly history", "chat_id", chatID, "error", err)
		b.send(chatID, genericErrorText)
		return
	}
	b.send(chatID, formatHistory(totals))
}

// --- reset confirmation flow ---

func confirmKeyboard(action ResetAction) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Confirm", CallbackData: fmt.Sprintf("reset:%s:confirm", action)},
			{Text: "Cancel", CallbackData: fmt.Sprintf("reset:%s:cancel", action)},
		}},
	}
}

func (b *Bot) requestReset(chatID int64, from *telegram.User, action ResetAction) {
	var prompt string
	switch action {
	case ResetAll:
		sessions, err := b.db.AllSessions(chatID)
		if err != nil {
			slog.Error("Failed to list sessions", "chat_id", chatID, "error", err)
			b.send(chatID, genericErrorText)
			return
		}
		if len(sessions) == 0 {
			b.send(chatID, "No parking history to delete.")
			return
		}
		prompt = formatResetPrompt(action, nil, len(sessions))
	default:
		total, err := b.db.CurrentMonthTotal(chatID)
		if err != nil {
			slog.Error("Failed to fetch current month total", "chat_id", chatID, "error", err)
			b.send(chatID, genericErrorText)
			return
		}
		if total.TotalMinutes == 0 {
			b.send(chatID, fmt.Sprintf("Nothing to reset for %s.", monthTitle(total.Month, total.Year)))
			return
		}
		prompt = formatResetPrompt(action, total, 0)
	}

	messageID, err := b.transport.SendMessageWithKeyboard(chatID, prompt, confirmKeyboard(action))
	if err != nil {
		slog.Error("Failed to send reset prompt", "chat_id", chatID, "error", err)
		return
	}
	b.confirms.Request(chatID, action, from.ID, messageID)
}

func (b *Bot) handleCallback(query *telegram.CallbackQuery) {
	parts := strings.Split(query.Data, ":")
	if len(parts) != 3 || parts[0] != "reset" {
		b.answer(query.ID, "", false)
		return
	}
	action := ResetAction(parts[1])
	verb := parts[2]
	chatID := query.Message.Chat.ID

	pending, result := b.confirms.Take(chatID, action, query.From.ID)
	switch result {
	case TakeNone:
		b.answer(query.ID, "This confirmation is no longer active. Reissue the command.", true)
		return
	case TakeExpired:
		b.answer(query.ID, "This confirmation has expired. Reissue the command.", true)
		b.edit(chatID, pending.MessageID, "Reset request expired.")
		return
	case TakeUnauthorized:
		b.answer(query.ID, "Only the user who requested the reset can confirm or cancel it.", true)
		return
	}

	if verb == "cancel" {
		b.edit(chatID, pending.MessageID, "Reset cancelled.")
		b.answer(query.ID, "Cancelled", false)
		return
	}

	var deleted int
	var err error
	if action == ResetAll {
		deleted, err = b.db.ResetAll(chatID)
	} else {
		deleted, err = b.db.ResetMonth(chatID)
	}
	switch {
	case errors.Is(err, parking.ErrNothingToReset):
		b.edit(chatID, pending.MessageID, "Nothing to reset.")
	case err != nil:
		slog.Error("Reset failed", "chat_id", chatID, "action", action, "error", err)
		b.edit(chatID, pending.MessageID, "Reset failed. Reissue the command to try again.")
	default:
		b.edit(chatID, pending.MessageID, fmt.Sprintf("Done. Deleted %d sessions.", deleted))
	}
	b.answer(query.ID, "", false)
}

// --- ticket submissions ---

// handleSubmission enters a photo or a document attachment into the
// submission pipeline, batching media-group members first.
func (b *Bot) handleSubmission(msg *telegram.Message) {
	item, ok := b.itemFromMessage(msg)
	if !ok {
		b.send(msg.Chat.ID, "Unsupported attachment. Send a photo, a PDF scan or a HEIC image of the ticket.")
		return
	}

	if msg.MediaGroupID != "" {
		b.groups.Add(msg.MediaGroupID, item)
		return
	}

	if !b.gate.TryAcquire(item.From.ID) {
		b.send(item.ChatID, stillProcessing)
		return
	}
	defer b.gate.Release(item.From.ID)

	result := b.processItem(item)
	b.send(item.ChatID, b.singleReply(result))
}

// itemFromMessage extracts the submittable file from a message. For photos
// Telegram sends multiple sizes; the last is the largest.
func (b *Bot) itemFromMessage(msg *telegram.Message) (GroupItem, bool) {
	item := GroupItem{ChatID: msg.Chat.ID, From: *msg.From}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		item.FileID = photo.FileID
		item.FileName = photo.FileID + ".jpg"
		item.ContentType = "image/jpeg"
		return item, true
	}

	doc := msg.Document
	mime := strings.ToLower(doc.MimeType)
	if mime != "application/pdf" && !strings.HasPrefix(mime, "image/") {
		return GroupItem{}, false
	}
	item.FileID = doc.FileID
	item.FileName = doc.FileName
	if item.FileName == "" {
		item.FileName = doc.FileID
	}
	item.ContentType = mime
	return item, true
}

// submissionResult is the per-item outcome of the OCR → extraction →
// accounting pipeline.
type submissionResult struct {
	outcome    *parking.Outcome
	confidence string
	// failure is a user-facing message set when the pipeline stopped before
	// the accounting engine (unreadable image, extraction failure, transport
	// trouble).
	failure string
}

func (b *Bot) processItem(item GroupItem) submissionResult {
	data, err := b.fetchFile(item.FileID)
	if err != nil {
		slog.Warn("Failed to fetch ticket file", "chat_id", item.ChatID, "file_id", item.FileID, "error", err)
		return submissionResult{failure: genericErrorText}
	}

	if b.archive != nil {
		name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), item.FileName)
		if _, err := b.archive.Save(name, data); err != nil {
			// Archiving is best effort; the submission goes on.
			slog.Warn("Failed to archive ticket", "chat_id", item.ChatID, "error", err)
		}
	}

	recognized, err := b.recognizer.Recognize(data, item.ContentType)
	if err != nil {
		slog.Warn("OCR failed", "chat_id", item.ChatID, "error", err)
		return submissionResult{failure: genericErrorText}
	}
	if len(recognized.Text) < scanning.MinUsableText {
		return submissionResult{failure: formatExtractionFailure("no readable text found on the image", recognized.Text)}
	}

	extraction, err := b.extractor.Extract(recognized.Text)
	if err != nil {
		slog.Warn("Extraction failed", "chat_id", item.ChatID, "error", err)
		return submissionResult{failure: genericErrorText}
	}
	if !extraction.OK {
		fragment := extraction.Fragment
		if fragment == "" {
			fragment = recognized.Text
		}
		return submissionResult{failure: formatExtractionFailure(extraction.Reason, fragment)}
	}

	submitter := parking.Submitter{
		UserID:   item.From.ID,
		Username: telegram.FormatUserName(&item.From),
	}
	outcome := b.service.RecordSubmission(item.ChatID, submitter, extraction)
	return submissionResult{outcome: outcome, confidence: extraction.Confidence}
}

func (b *Bot) fetchFile(fileID string) ([]byte, error) {
	file, err := b.transport.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	return b.transport.DownloadFile(file.FilePath)
}

// singleReply renders the detailed per-item reply used outside batch mode.
func (b *Bot) singleReply(result submissionResult) string {
	if result.failure != "" {
		return result.failure
	}
	switch result.outcome.Kind {
	case parking.OutcomeDuplicate:
		return formatDuplicate(result.outcome.Plate, result.outcome.Start)
	case parking.OutcomeFailed:
		return genericErrorText
	default:
		return formatRecorded(result.outcome, result.confidence)
	}
}

// flushGroup processes a debounced media group as one batch: items run
// sequentially through the engine, per-item diagnostics are suppressed and a
// single consolidated summary is sent.
func (b *Bot) flushGroup(groupID string, items []GroupItem) {
	if len(items) == 0 {
		return
	}
	chatID := items[0].ChatID
	userID := items[0].From.ID

	if !b.gate.TryAcquire(userID) {
		b.send(chatID, stillProcessing)
		return
	}
	defer b.gate.Release(userID)

	slog.Info("Processing media group", "group_id", groupID, "items", len(items), "chat_id", chatID)

	var recorded, duplicates, failed int
	for _, item := range items {
		result := b.processItem(item)
		switch {
		case result.failure != "":
			failed++
		case result.outcome.Kind == parking.OutcomeRecorded:
			recorded++
		case result.outcome.Kind == parking.OutcomeDuplicate:
			duplicates++
		default:
			failed++
		}
	}

	total, err := b.db.CurrentMonthTotal(chatID)
	if err != nil {
		slog.Warn("Failed to fetch current month total", "chat_id", chatID, "error", err)
		total = nil
	}
	b.send(chatID, formatBatchSummary(recorded, duplicates, failed, total))
}

// --- transport helpers ---

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.transport.SendMessage(chatID, text); err != nil {
		slog.Warn("Failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if err := b.transport.EditMessageText(chatID, messageID, text); err != nil {
		slog.Warn("Failed to edit message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) answer(callbackID, text string, showAlert bool) {
	if err := b.transport.AnswerCallbackQuery(callbackID, text, showAlert); err != nil {
		slog.Warn("Failed to answer callback query", "callback_id", callbackID, "error", err)
	}
}
