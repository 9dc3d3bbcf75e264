package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
	"go.opentelemetry.io/otel/trace"

	"github.com/instapipe/dm-manager/internal/locator"
	"github.com/instapipe/dm-manager/internal/serviceerr"
	"github.com/instapipe/dm-manager/internal/session"
)

const (
	inboxSettleMin = 4 * time.Second
	inboxSettleMax = 6 * time.Second

	popupDismissMin = 1 * time.Second
	popupDismissMax = 1500 * time.Millisecond

	suggestionWaitMin = 1 * time.Second
	suggestionWaitMax = 2 * time.Second

	composerFallbackMin = 2 * time.Second
	composerFallbackMax = 3 * time.Second

	sendPollAttempts = 3
	sendPollGapMin   = 1 * time.Second
	sendPollGapMax   = 2 * time.Second

	postSendSettleMin = 3 * time.Second
	postSendSettleMax = 5 * time.Second
)

// Messaging delivers one direct message on behalf of an identity with a
// previously persisted session. The send-control poll is the only retry
// in the flow; every other missing element is terminal.
type Messaging struct {
	browser  Browser
	store    *session.Store
	tracer   trace.Tracer
	inboxURL string
}

func NewMessaging(browser Browser, store *session.Store, tracer trace.Tracer, inboxURL string) *Messaging {
	return &Messaging{
		browser:  browser,
		store:    store,
		tracer:   tracer,
		inboxURL: inboxURL,
	}
}

// Execute runs the messaging state machine. The browser session is
// seeded from the identity's stored state and released on every path.
func (f *Messaging) Execute(ctx context.Context, identity, recipient, message string) error {
	ctx = slogctx.With(ctx, "flow", "messaging", "identity", identity, "correlation_id", uuid.NewString())
	ctx, span := f.tracer.Start(ctx, "flow.send_message")
	defer span.End()

	state, err := f.store.GetSession(ctx, identity)
	if err != nil {
		return err
	}

	sess, err := f.browser.CreateStealthContext(ctx, state)
	if err != nil {
		return err
	}
	defer sess.Close(context.WithoutCancel(ctx))

	if err := f.openInbox(ctx, sess); err != nil {
		return err
	}

	composer, err := f.resolveRecipient(ctx, sess, recipient)
	if err != nil {
		return err
	}

	return f.send(ctx, sess, composer, message)
}

func (f *Messaging) openInbox(ctx context.Context, sess Session) error {
	if err := sess.Navigate(ctx, f.inboxURL); err != nil {
		return serviceerr.AutomationFault("inbox-navigate", err)
	}
	if err := sess.WaitReady(ctx); err != nil {
		return serviceerr.AutomationFault("inbox-ready", err)
	}

	// The inbox keeps loading conversations well past the ready state.
	sess.RandomDelay(ctx, inboxSettleMin, inboxSettleMax)
	if err := sess.RandomMouseMove(ctx); err != nil {
		return serviceerr.AutomationFault("inbox-settle", err)
	}

	prompt, err := sess.Resolve(ctx, notificationPromptQuery)
	if err != nil {
		return serviceerr.AutomationFault("notification-prompt-query", err)
	}
	if notNow := prompt.Field("notification_prompt").Field("not_now_btn"); notNow.Present() {
		slogctx.Debug(ctx, "Dismissing notification prompt")
		if err := notNow.Element().Click(); err != nil {
			return serviceerr.AutomationFault("notification-prompt-dismiss", err)
		}
		sess.RandomDelay(ctx, popupDismissMin, popupDismissMax)
	}

	return nil
}

// resolveRecipient opens the compose dialog, searches the recipient,
// picks the suggestion, and returns the ready message composer.
func (f *Messaging) resolveRecipient(ctx context.Context, sess Session, recipient string) (*locator.Match, error) {
	compose, err := sess.Resolve(ctx, composeQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("compose-query", err)
	}
	btn := compose.Field("new_message_btn")
	if !btn.Present() {
		return nil, serviceerr.AutomationFault("compose-control", errControlMissing)
	}
	if err := btn.Element().Click(); err != nil {
		return nil, serviceerr.AutomationFault("compose-open", err)
	}

	search, err := sess.Resolve(ctx, recipientInputQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("recipient-input-query", err)
	}
	input := search.Field("recipient_input")
	if !input.Present() {
		return nil, serviceerr.MessageSendFailed(serviceerr.ReasonRecipientInputMissing)
	}
	if err := sess.HumanType(ctx, input.Element(), recipient); err != nil {
		return nil, serviceerr.AutomationFault("recipient-type", err)
	}
	sess.RandomDelay(ctx, suggestionWaitMin, suggestionWaitMax)

	suggestions, err := sess.Resolve(ctx, chatSuggestionQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("suggestion-query", err)
	}
	suggestion := suggestions.Field("chat_suggestion")
	if !suggestion.Present() {
		slogctx.Warn(ctx, "No suggestion for recipient", "recipient", recipient)
		return nil, serviceerr.MessageSendFailed(serviceerr.ReasonNoSuggestion)
	}
	if err := suggestion.Element().Click(); err != nil {
		return nil, serviceerr.AutomationFault("suggestion-click", err)
	}

	chat, err := sess.Resolve(ctx, chatButtonQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("chat-button-query", err)
	}
	if chatBtn := chat.Field("chat_button"); chatBtn.Present() {
		if err := chatBtn.Element().Click(); err != nil {
			return nil, serviceerr.AutomationFault("chat-button-click", err)
		}
	}

	// A pending invite means the thread cannot accept messages yet, so
	// there is nothing to retry.
	invite, err := sess.Resolve(ctx, inviteSentQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("invite-query", err)
	}
	if invite.Field("invite_sent_message").Present() {
		slogctx.Warn(ctx, "Invite to recipient still pending", "recipient", recipient)
		return nil, serviceerr.MessageSendFailed(serviceerr.ReasonInvitePending)
	}

	composer, err := f.findComposer(ctx, sess)
	if err != nil {
		return nil, err
	}

	return composer, nil
}

// findComposer resolves the message input, allowing one fallback pass
// for a still-settling thread view.
func (f *Messaging) findComposer(ctx context.Context, sess Session) (*locator.Match, error) {
	res, err := sess.Resolve(ctx, composerQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("composer-query", err)
	}
	if box := res.Field("message_box"); box.Present() {
		return box, nil
	}

	sess.RandomDelay(ctx, composerFallbackMin, composerFallbackMax)
	if err := sess.RandomScroll(ctx); err != nil {
		return nil, serviceerr.AutomationFault("composer-scroll", err)
	}

	res, err = sess.Resolve(ctx, composerQuery)
	if err != nil {
		return nil, serviceerr.AutomationFault("composer-query", err)
	}
	if box := res.Field("message_box"); box.Present() {
		return box, nil
	}

	return nil, serviceerr.MessageSendFailed(serviceerr.ReasonComposerMissing)
}

func (f *Messaging) send(ctx context.Context, sess Session, composer *locator.Match, message string) error {
	if err := sess.HumanType(ctx, composer.Element(), message); err != nil {
		return serviceerr.AutomationFault("message-type", err)
	}

	for attempt := 1; attempt <= sendPollAttempts; attempt++ {
		res, err := sess.Resolve(ctx, sendButtonQuery)
		if err != nil {
			return serviceerr.AutomationFault("send-button-query", err)
		}

		if btn := res.Field("send_button"); btn.Present() {
			if err := btn.Element().Click(); err != nil {
				return serviceerr.AutomationFault("send-click", err)
			}

			sess.RandomDelay(ctx, postSendSettleMin, postSendSettleMax)
			slogctx.Info(ctx, "Message sent", "attempts", attempt)

			return nil
		}

		if attempt < sendPollAttempts {
			sess.RandomDelay(ctx, sendPollGapMin, sendPollGapMax)
		}
	}

	return serviceerr.MessageSendFailed(serviceerr.ReasonSendControlMissing)
}
