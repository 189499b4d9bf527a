package engine

import (
	"context"
	"strings"

	"gemtui/catalog"
	"gemtui/config"
)

// ImagePromptPrefix marks a user message as an image-generation request.
// Regenerate uses it to pick the right pipeline; EditMessage strips it when
// staging the prompt for editing.
const ImagePromptPrefix = "Generate an image: "

// Attachment is a text file attached to a turn. Its content rides along in
// the history form of the user message so later turns keep the file
// context.
type Attachment struct {
	Name string
	Data []byte
}

// buildHistoryText appends the delimited attachment block to the user's
// text. This is the full form stored in history and sent to the provider;
// the display form stays the bare text.
func buildHistoryText(text string, file *Attachment) string {
	if file == nil {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n--- Attached file: ")
	b.WriteString(file.Name)
	b.WriteString(" ---\n")
	b.Write(file.Data)
	b.WriteString("\n--- End of attached file ---")
	return b.String()
}

// SendTurn dispatches one chat turn: the user message is appended, a
// streaming placeholder follows it, and the provider stream is folded into
// the placeholder chunk by chunk. Returns false without touching the log
// when the composed content is empty or a turn is already outstanding for
// this session; a second send is rejected, never queued.
//
// SendTurn itself never fails: provider errors terminate the turn as an
// error message in the log.
func (e *Engine) SendTurn(text string, image string, file *Attachment) bool {
	e.mu.Lock()

	if strings.TrimSpace(text) == "" && image == "" && file == nil {
		e.mu.Unlock()
		return false
	}
	sessionID := e.log.SessionID()
	if e.inFlight[sessionID] {
		e.mu.Unlock()
		return false
	}

	history := e.log.Messages()
	historyText := buildHistoryText(text, file)

	userMsg := newMessage(RoleUser)
	userMsg.Text = text
	userMsg.Image = image
	if historyText != text {
		userMsg.HistoryText = historyText
	}
	e.log.Append(userMsg)

	placeholder := newMessage(RoleModel)
	placeholder.IsStreaming = true
	e.log.Append(placeholder)

	e.inFlight[sessionID] = true
	opts := e.turnOptionsLocked()
	log := e.log // captured: chunks keep flowing here after a session switch
	e.syncLocked(log)
	e.mu.Unlock()

	e.emit(InputClearedEvent{}, LogChangedEvent{SessionID: sessionID},
		SessionsChangedEvent{}, TurnStartedEvent{SessionID: sessionID})

	go e.runTurn(log, placeholder.ID, history, historyText, image, opts)
	return true
}

// GenerateImage dispatches one image-generation turn. It shares the
// per-session in-flight gate with SendTurn: both mutate the same "awaiting
// model" placeholder concept, so they can never overlap.
func (e *Engine) GenerateImage(prompt string) bool {
	e.mu.Lock()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		e.mu.Unlock()
		return false
	}
	sessionID := e.log.SessionID()
	if e.inFlight[sessionID] {
		e.mu.Unlock()
		return false
	}

	userMsg := newMessage(RoleUser)
	userMsg.Text = ImagePromptPrefix + prompt
	e.log.Append(userMsg)

	placeholder := newMessage(RoleModel)
	placeholder.IsStreaming = true
	e.log.Append(placeholder)

	e.inFlight[sessionID] = true
	log := e.log
	e.syncLocked(log)
	e.mu.Unlock()

	e.emit(InputClearedEvent{}, LogChangedEvent{SessionID: sessionID},
		SessionsChangedEvent{}, TurnStartedEvent{SessionID: sessionID})

	go e.runImageTurn(log, placeholder.ID, prompt)
	return true
}

// turnOptionsLocked builds the per-turn options. The thinking budget is
// attached only when the model family supports it AND the toggle is on;
// for other families it is omitted entirely, the API rejects a meaningless
// value. Must be called with the lock held.
func (e *Engine) turnOptionsLocked() TurnOptions {
	opts := TurnOptions{
		Model:             e.opts.Model,
		SystemInstruction: e.opts.SystemInstruction,
	}
	if e.opts.ThinkingEnabled && catalog.SupportsThinking(catalog.ModelID(e.opts.Model)) {
		budget := e.opts.ThinkingBudget
		if budget <= 0 {
			budget = defaultThinkingBudget
		}
		opts.ThinkingBudget = &budget
	}
	return opts
}

// runTurn consumes the provider stream on its own goroutine. Each chunk
// re-enters the engine through the lock, so chunk folding is total-ordered
// with every other mutation.
func (e *Engine) runTurn(log *MessageLog, placeholderID string, history []Message, text, image string, opts TurnOptions) {
	// Candidate cancellation point: no cancel primitive exists today, the
	// stream runs to completion or failure regardless of UI visibility.
	ctx := context.Background()

	var acc strings.Builder
	err := e.provider.StreamTurn(ctx, history, text, image, opts, func(chunk Chunk) error {
		if chunk.Text == "" {
			return nil
		}
		acc.WriteString(chunk.Text)
		e.patchStreamingText(log, placeholderID, acc.String())
		return nil
	})

	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] turn failed for session %s: %v", log.SessionID(), err)
		}
		e.finishTurn(log, placeholderID, MessagePatch{
			Text:        ptr(classifyProviderError(err)),
			IsError:     ptr(true),
			IsStreaming: ptr(false),
		}, true)
		return
	}

	final := acc.String()
	e.finishTurn(log, placeholderID, MessagePatch{
		Text:        &final,
		IsStreaming: ptr(false),
	}, false)
}

func (e *Engine) runImageTurn(log *MessageLog, placeholderID, prompt string) {
	ctx := context.Background()

	imageData, err := e.provider.GenerateImage(ctx, prompt)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] image generation failed for session %s: %v", log.SessionID(), err)
		}
		e.finishTurn(log, placeholderID, MessagePatch{
			Text:        ptr(classifyProviderError(err)),
			IsError:     ptr(true),
			IsStreaming: ptr(false),
		}, true)
		return
	}

	e.finishTurn(log, placeholderID, MessagePatch{
		Text:        ptr("Generated image for: " + prompt),
		Image:       &imageData,
		IsStreaming: ptr(false),
	}, false)
}

// patchStreamingText updates the placeholder with the accumulated text so
// far, leaving it streaming.
func (e *Engine) patchStreamingText(log *MessageLog, placeholderID, text string) {
	e.mu.Lock()
	log.Patch(placeholderID, MessagePatch{Text: &text})
	e.syncLocked(log)
	e.mu.Unlock()

	e.emit(LogChangedEvent{SessionID: log.SessionID()})
}

// finishTurn applies the terminal patch and clears the in-flight marker so
// a new turn may be dispatched.
func (e *Engine) finishTurn(log *MessageLog, placeholderID string, patch MessagePatch, failed bool) {
	e.mu.Lock()
	log.Patch(placeholderID, patch)
	delete(e.inFlight, log.SessionID())
	e.syncLocked(log)
	e.mu.Unlock()

	e.emit(LogChangedEvent{SessionID: log.SessionID()}, SessionsChangedEvent{},
		TurnFinishedEvent{SessionID: log.SessionID(), Failed: failed})
}

// classifyProviderError folds a provider failure into a short user-facing
// message. The raw description only survives in the generic case.
func classifyProviderError(err error) string {
	desc := err.Error()
	lower := strings.ToLower(desc)

	switch {
	case strings.Contains(lower, "api key") ||
		strings.Contains(lower, "api_key") ||
		strings.Contains(lower, "credential") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "401"):
		return "API key missing or invalid. Configure your credentials before retrying."

	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "quota"):
		return "Rate limited by the provider. Wait a moment and try again."

	case strings.Contains(lower, "404") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "unsupported model"):
		return "The selected model is unavailable. Switch models and try again."

	default:
		return "Request failed: " + desc
	}
}

func ptr[T any](v T) *T {
	return &v
}
