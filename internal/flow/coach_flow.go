// Package flow implements the conversation state machine for AICoach.
//
// A user moves through scripted onboarding (language, profile, focus areas,
// a short question plan) and then into free-form coaching chat backed by the
// generation client. The flow never returns an error to the dispatcher:
// generation failures map to a fixed localized apology and the state never
// regresses.
package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/bouajo/aicoach/internal/genai"
	"github.com/bouajo/aicoach/internal/models"
	"github.com/bouajo/aicoach/internal/store"
	"github.com/openai/openai-go"
)

// DefaultHistoryLimit is the number of recent messages sent to the
// generation client in active conversation.
const DefaultHistoryLimit = 8

// Opts holds configuration options for the coach flow.
type Opts struct {
	HistoryLimit        int
	AllowLanguageChange bool
	Extractor           FieldExtractor
}

// Option defines a configuration option for the coach flow.
type Option func(*Opts)

// WithHistoryLimit sets how many recent messages are sent to the generation
// client in active conversation.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) {
		o.HistoryLimit = n
	}
}

// WithLanguageChange controls whether an active user can switch language by
// naming one. Off by default.
func WithLanguageChange(allow bool) Option {
	return func(o *Opts) {
		o.AllowLanguageChange = allow
	}
}

// WithExtractor overrides the profile field extractor.
func WithExtractor(e FieldExtractor) Option {
	return func(o *Opts) {
		o.Extractor = e
	}
}

// CoachFlow is the conversation state machine. It owns all state
// transitions; the dispatcher only calls Transition.
type CoachFlow struct {
	store               store.Store
	genaiClient         genai.ClientInterface
	extractor           FieldExtractor
	historyLimit        int
	allowLanguageChange bool
}

// NewCoachFlow creates a coach flow on top of a store and a generation
// client.
func NewCoachFlow(st store.Store, genaiClient genai.ClientInterface, opts ...Option) *CoachFlow {
	cfg := Opts{
		HistoryLimit: DefaultHistoryLimit,
		Extractor:    &RegexExtractor{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	slog.Debug("NewCoachFlow created", "historyLimit", cfg.HistoryLimit, "allowLanguageChange", cfg.AllowLanguageChange)
	return &CoachFlow{
		store:               st,
		genaiClient:         genaiClient,
		extractor:           cfg.Extractor,
		historyLimit:        cfg.HistoryLimit,
		allowLanguageChange: cfg.AllowLanguageChange,
	}
}

// Transition processes one incoming message for a user and returns the
// outbound reply, or "" when no reply should be sent. It persists the
// incoming message, the updated user, and the outbound message. Errors are
// logged, never returned: the caller acknowledges the webhook regardless.
func (f *CoachFlow) Transition(ctx context.Context, user *models.User, text string) string {
	slog.Debug("CoachFlow.Transition: processing message", "userID", user.ID, "state", user.State)

	incoming := models.ChatMessage{UserID: user.ID, Role: models.RoleUser, Content: text}
	if err := f.store.AddMessage(ctx, incoming); err != nil {
		// No reply without a record of having received the message.
		slog.Error("CoachFlow.Transition: failed to persist incoming message", "error", err, "userID", user.ID)
		return ""
	}

	var reply string
	switch user.State {
	case models.StateNew:
		reply = f.handleNew(ctx, user, text)
	case models.StateAwaitingLanguage:
		reply = f.handleAwaitingLanguage(ctx, user, text)
	case models.StateAwaitingProfile:
		reply = f.handleAwaitingProfile(ctx, user, text)
	case models.StateAwaitingAreas:
		reply = f.handleAwaitingAreas(ctx, user, text)
	case models.StateAskingQuestions:
		reply = f.handleAskingQuestions(ctx, user, text)
	case models.StateActive:
		reply = f.handleActive(ctx, user, text)
	default:
		slog.Error("CoachFlow.Transition: user in unknown state, treating as active", "userID", user.ID, "state", user.State)
		user.State = models.StateActive
		reply = f.handleActive(ctx, user, text)
	}

	if err := f.store.SaveUser(ctx, user); err != nil {
		slog.Error("CoachFlow.Transition: failed to persist user, skipping reply", "error", err, "userID", user.ID)
		return ""
	}
	if reply != "" {
		outgoing := models.ChatMessage{UserID: user.ID, Role: models.RoleAssistant, Content: reply}
		if err := f.store.AddMessage(ctx, outgoing); err != nil {
			slog.Error("CoachFlow.Transition: failed to persist outbound message", "error", err, "userID", user.ID)
		}
	}
	slog.Debug("CoachFlow.Transition: done", "userID", user.ID, "newState", user.State, "replyLength", len(reply))
	return reply
}

// handleNew greets a first-time user and tries to detect their language from
// this first message.
func (f *CoachFlow) handleNew(ctx context.Context, user *models.User, text string) string {
	lang := f.detectLanguage(ctx, text)
	if lang == "" {
		user.State = models.StateAwaitingLanguage
		return localize(greetings, "en") + "\n\n" + languagePrompt
	}
	user.Language = lang
	user.State = models.StateAwaitingProfile
	return localize(greetings, lang) + "\n\n" + f.questionFor(user)
}

// handleAwaitingLanguage keeps asking until a language can be determined.
func (f *CoachFlow) handleAwaitingLanguage(ctx context.Context, user *models.User, text string) string {
	lang := f.detectLanguage(ctx, text)
	if lang == "" {
		return languagePrompt
	}
	user.Language = lang
	user.State = models.StateAwaitingProfile
	return f.questionFor(user)
}

// handleAwaitingProfile parses the next required profile field out of the
// message. Unparsable input re-prompts the same field.
func (f *CoachFlow) handleAwaitingProfile(ctx context.Context, user *models.User, text string) string {
	field := nextProfileField(user)
	if field == "" {
		// Profile already complete; move on.
		return f.startAreas(ctx, user)
	}

	value, ok := f.extractor.Extract(field, text)
	if !ok {
		slog.Debug("CoachFlow.handleAwaitingProfile: unparsable answer", "userID", user.ID, "field", field)
		return localize(clarifications[field], user.Language)
	}
	applyFieldValue(user, field, value)
	slog.Debug("CoachFlow.handleAwaitingProfile: field collected", "userID", user.ID, "field", field)

	if nextProfileField(user) == "" {
		return f.startAreas(ctx, user)
	}
	return f.questionFor(user)
}

// startAreas transitions to focus-area selection.
func (f *CoachFlow) startAreas(ctx context.Context, user *models.User) string {
	user.State = models.StateAwaitingAreas
	menu, err := f.genaiClient.GeneratePrompt(ctx, areasSystemPrompt, "Language: "+user.Language)
	if err != nil || strings.TrimSpace(menu) == "" {
		slog.Warn("CoachFlow.startAreas: falling back to static areas menu", "error", err, "userID", user.ID)
		return localize(areasFallbacks, user.Language)
	}
	return menu
}

// handleAwaitingAreas records the chosen focus areas and generates the
// 5-question coaching plan.
func (f *CoachFlow) handleAwaitingAreas(ctx context.Context, user *models.User, text string) string {
	user.FocusAreas = strings.TrimSpace(text)

	questions := f.generatePlan(ctx, user)
	plan := models.CoachPlan{Questions: questions, Index: 0}
	raw, err := json.Marshal(plan)
	if err != nil {
		slog.Error("CoachFlow.handleAwaitingAreas: failed to marshal plan", "error", err, "userID", user.ID)
		user.State = models.StateActive
		return localize(closingFallbacks, user.Language)
	}
	user.Plan = string(raw)
	user.State = models.StateAskingQuestions
	slog.Info("CoachFlow.handleAwaitingAreas: plan generated", "userID", user.ID, "questionCount", len(questions))
	return plan.Current()
}

// generatePlan produces the coaching questions for the user's areas, with a
// fixed localized fallback when generation fails.
func (f *CoachFlow) generatePlan(ctx context.Context, user *models.User) []string {
	userContent := "User language: " + user.Language + "\nUser areas: " + user.FocusAreas + "\n"
	text, err := f.genaiClient.GeneratePrompt(ctx, planSystemPrompt, userContent)
	if err == nil {
		if questions := parsePlanQuestions(text); len(questions) > 0 {
			return questions
		}
	}
	slog.Warn("CoachFlow.generatePlan: falling back to static questions", "error", err, "userID", user.ID)
	fb, ok := fallbackQuestions[user.Language]
	if !ok {
		fb = fallbackQuestions["en"]
	}
	return fb
}

// handleAskingQuestions advances the plan cursor by one per answer and
// transitions to active once every question is answered.
func (f *CoachFlow) handleAskingQuestions(ctx context.Context, user *models.User, text string) string {
	var plan models.CoachPlan
	if err := json.Unmarshal([]byte(user.Plan), &plan); err != nil {
		slog.Error("CoachFlow.handleAskingQuestions: failed to decode plan, closing intake", "error", err, "userID", user.ID)
		user.State = models.StateActive
		return f.closeIntake(ctx, user)
	}

	plan.Index++
	if plan.Done() {
		user.State = models.StateActive
		slog.Info("CoachFlow.handleAskingQuestions: plan complete", "userID", user.ID)
		return f.closeIntake(ctx, user)
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		slog.Error("CoachFlow.handleAskingQuestions: failed to marshal plan", "error", err, "userID", user.ID)
		user.State = models.StateActive
		return f.closeIntake(ctx, user)
	}
	user.Plan = string(raw)
	return plan.Current()
}

// closeIntake thanks the user and opens free-form conversation.
func (f *CoachFlow) closeIntake(ctx context.Context, user *models.User) string {
	msg, err := f.genaiClient.GeneratePrompt(ctx, closingSystemPrompt, "Language: "+user.Language)
	if err != nil || strings.TrimSpace(msg) == "" {
		return localize(closingFallbacks, user.Language)
	}
	return msg
}

// handleActive is free-form coaching conversation: recent history plus the
// incoming message go to the generation client and the answer is relayed
// verbatim.
func (f *CoachFlow) handleActive(ctx context.Context, user *models.User, text string) string {
	if f.allowLanguageChange {
		if lang := parseLanguageKeyword(text); lang != "" && lang != user.Language {
			user.Language = lang
			slog.Info("CoachFlow.handleActive: language changed", "userID", user.ID, "language", lang)
			return localize(greetings, lang)
		}
	}

	history, err := f.store.RecentMessages(ctx, user.ID, f.historyLimit)
	if err != nil {
		slog.Error("CoachFlow.handleActive: failed to load history", "error", err, "userID", user.ID)
		history = nil
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(mainSystemPrompt))
	sawIncoming := false
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
		if m.Role == models.RoleUser && m.Content == text {
			sawIncoming = true
		}
	}
	// The incoming message is normally already in history, persisted by
	// Transition before dispatch.
	if !sawIncoming {
		messages = append(messages, openai.UserMessage(text))
	}

	reply, err := f.genaiClient.GenerateWithMessages(ctx, messages)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Error("CoachFlow.handleActive: generation failed, using apology fallback", "error", err, "userID", user.ID)
		return localize(apologies, user.Language)
	}
	return reply
}

// detectLanguage determines the language of a message, trying an explicit
// keyword first and then the generation client. Returns "" when
// undetermined.
func (f *CoachFlow) detectLanguage(ctx context.Context, text string) string {
	if code := parseLanguageKeyword(text); code != "" {
		return code
	}
	out, err := f.genaiClient.GeneratePrompt(ctx, languageDetectSystemPrompt, text)
	if err != nil {
		slog.Warn("CoachFlow.detectLanguage: generation failed", "error", err)
		return ""
	}
	code := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `."'`)))
	if code == models.LanguageUndetermined || !languageCodeRe.MatchString(code) {
		return ""
	}
	return code
}

// questionFor returns the prompt for the user's next missing profile field.
func (f *CoachFlow) questionFor(user *models.User) string {
	field := nextProfileField(user)
	if field == "" {
		return ""
	}
	return localize(profileQuestions[field], user.Language)
}

// nextProfileField returns the first field in collection order that the
// user has not answered yet, or "" when the profile is complete.
func nextProfileField(u *models.User) ProfileField {
	for _, field := range profileFieldOrder {
		switch field {
		case FieldName:
			if u.Name == "" {
				return field
			}
		case FieldAge:
			if u.Age == 0 {
				return field
			}
		case FieldHeight:
			if u.HeightCM == 0 {
				return field
			}
		case FieldCurrentWeight:
			if u.CurrentWeight == 0 {
				return field
			}
		case FieldTargetWeight:
			if u.TargetWeight == 0 {
				return field
			}
		case FieldTargetDate:
			if u.TargetDate == "" {
				return field
			}
		}
	}
	return ""
}

// applyFieldValue writes a parsed value onto the user profile.
func applyFieldValue(u *models.User, field ProfileField, v FieldValue) {
	switch field {
	case FieldName:
		u.Name = v.Text
	case FieldAge:
		u.Age = int(v.Number)
	case FieldHeight:
		u.HeightCM = int(v.Number)
	case FieldCurrentWeight:
		u.CurrentWeight = v.Number
	case FieldTargetWeight:
		u.TargetWeight = v.Number
	case FieldTargetDate:
		u.TargetDate = v.Text
	}
}
