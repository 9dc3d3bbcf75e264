package flow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instapipe/dm-manager/internal/flow"
	"github.com/instapipe/dm-manager/internal/locator"
	"github.com/instapipe/dm-manager/internal/serviceerr"
	"github.com/instapipe/dm-manager/internal/session"
)

// messagingElements collects the interactive controls a scripted happy
// path exposes.
type messagingElements struct {
	compose    *fakeElement
	recipient  *fakeElement
	suggestion *fakeElement
	composer   *fakeElement
	send       *fakeElement
}

func leafResult(name string, el *fakeElement) *locator.Result {
	return result(map[string]*locator.Match{name: match(el)})
}

// happyMessagingSession scripts every step of a successful send.
func happyMessagingSession(storage []byte) (*fakeSession, *messagingElements) {
	els := &messagingElements{
		compose:    &fakeElement{},
		recipient:  &fakeElement{},
		suggestion: &fakeElement{},
		composer:   &fakeElement{},
		send:       &fakeElement{},
	}

	sess := newFakeSession(storage).
		on("new_message_btn", leafResult("new_message_btn", els.compose)).
		on("recipient_input", leafResult("recipient_input", els.recipient)).
		on("chat_suggestion", leafResult("chat_suggestion", els.suggestion)).
		on("message_box", leafResult("message_box", els.composer)).
		on("send_button", leafResult("send_button", els.send))

	return sess, els
}

func saveSession(t *testing.T, store *session.Store, identity string, state []byte) {
	t.Helper()
	require.NoError(t, store.SaveSession(t.Context(), identity, state, sessionTTL))
}

func assertSendFailed(t *testing.T, err error, reason string) {
	t.Helper()

	var classified *serviceerr.Error
	require.True(t, errors.As(err, &classified), "expected a classified error, got %v", err)
	assert.Equal(t, serviceerr.CodeMessageSendFailed, classified.Err)
	assert.Equal(t, reason, classified.Reason)
}

func TestMessaging_Sent(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("saved-state"))

	sess, els := happyMessagingSession(nil)
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	err := messaging.Execute(t.Context(), "alice", "bob", "hello there")
	require.NoError(t, err)

	t.Run("seeds the context from the stored session", func(t *testing.T) {
		require.Len(t, browser.seeded, 1)
		assert.Equal(t, []byte("saved-state"), browser.seeded[0])
	})

	t.Run("opens the inbox", func(t *testing.T) {
		assert.Equal(t, []string{inboxURL}, sess.navigated)
	})

	t.Run("drives the composer", func(t *testing.T) {
		assert.Equal(t, 1, els.compose.clicks)
		assert.Equal(t, "bob", els.recipient.typed)
		assert.Equal(t, 1, els.suggestion.clicks)
		assert.Equal(t, "hello there", els.composer.typed)
		assert.Equal(t, 1, els.send.clicks)
	})

	t.Run("sends on the first poll", func(t *testing.T) {
		assert.Equal(t, 1, sess.resolves["send_button"])
	})

	t.Run("releases the session exactly once", func(t *testing.T) {
		assert.Equal(t, 1, sess.closes)
	})
}

func TestMessaging_SessionNotFound(t *testing.T) {
	store, _, _ := newStores(t)

	browser := &fakeBrowser{}
	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	err := messaging.Execute(t.Context(), "nobody", "bob", "hello")
	assert.ErrorIs(t, err, serviceerr.ErrSessionNotFound)
	assert.Empty(t, browser.seeded, "no browser session should be acquired")
}

func TestMessaging_DismissesNotificationPrompt(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	sess, _ := happyMessagingSession(nil)
	notNow := &fakeElement{}
	sess.on("notification_prompt", result(map[string]*locator.Match{
		"notification_prompt": locator.NewMatch(nil, map[string]*locator.Match{
			"not_now_btn": match(notNow),
		}),
	}))
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	require.NoError(t, messaging.Execute(t.Context(), "alice", "bob", "hello"))
	assert.Equal(t, 1, notNow.clicks)
}

func TestMessaging_ClicksChatButtonWhenPresent(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	sess, _ := happyMessagingSession(nil)
	chat := &fakeElement{}
	sess.on("chat_button", leafResult("chat_button", chat))
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	require.NoError(t, messaging.Execute(t.Context(), "alice", "bob", "hello"))
	assert.Equal(t, 1, chat.clicks)
}

func TestMessaging_RecipientInputMissing(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	sess, _ := happyMessagingSession(nil)
	sess.on("recipient_input", emptyResult())
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	err := messaging.Execute(t.Context(), "alice", "bob", "hello")
	assertSendFailed(t, err, serviceerr.ReasonRecipientInputMissing)
	assert.Equal(t, 1, sess.closes)
}

func TestMessaging_NoSuggestion(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	sess, _ := happyMessagingSession(nil)
	sess.on("chat_suggestion", emptyResult())
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	err := messaging.Execute(t.Context(), "alice", "bob", "hello")
	assertSendFailed(t, err, serviceerr.ReasonNoSuggestion)
}

func TestMessaging_InvitePendingFailsFast(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	sess, _ := happyMessagingSession(nil)
	sess.on("invite_sent_message", leafResult("invite_sent_message", &fakeElement{}))
	browser := &fakeBrowser{sessions: []*fakeSession{sess}}

	messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

	err := messaging.Execute(t.Context(), "alice", "bob", "hello")
	assertSendFailed(t, err, serviceerr.ReasonInvitePending)

	t.Run("performs zero send polls", func(t *testing.T) {
		assert.Equal(t, 0, sess.resolves["send_button"])
	})

	t.Run("releases the session exactly once", func(t *testing.T) {
		assert.Equal(t, 1, sess.closes)
	})
}

func TestMessaging_ComposerFallback(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	t.Run("composer appearing on the re-query succeeds", func(t *testing.T) {
		sess, els := happyMessagingSession(nil)
		sess.on("message_box", emptyResult(), leafResult("message_box", els.composer))
		browser := &fakeBrowser{sessions: []*fakeSession{sess}}

		messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

		require.NoError(t, messaging.Execute(t.Context(), "alice", "bob", "hello"))
		assert.Equal(t, 2, sess.resolves["message_box"])
		assert.Equal(t, "hello", els.composer.typed)
	})

	t.Run("only one fallback attempt is made", func(t *testing.T) {
		sess, _ := happyMessagingSession(nil)
		sess.on("message_box", emptyResult())
		browser := &fakeBrowser{sessions: []*fakeSession{sess}}

		messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

		err := messaging.Execute(t.Context(), "alice", "bob", "hello")
		assertSendFailed(t, err, serviceerr.ReasonComposerMissing)
		assert.Equal(t, 2, sess.resolves["message_box"])
	})
}

func TestMessaging_SendControlPolling(t *testing.T) {
	store, _, _ := newStores(t)
	saveSession(t, store, "alice", []byte("state"))

	t.Run("control appearing on the third poll succeeds", func(t *testing.T) {
		sess, els := happyMessagingSession(nil)
		sess.on("send_button", emptyResult(), emptyResult(), leafResult("send_button", els.send))
		browser := &fakeBrowser{sessions: []*fakeSession{sess}}

		messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

		require.NoError(t, messaging.Execute(t.Context(), "alice", "bob", "hello"))
		assert.Equal(t, 3, sess.resolves["send_button"])
		assert.Equal(t, 1, els.send.clicks)
	})

	t.Run("control absent on all three polls fails", func(t *testing.T) {
		sess, _ := happyMessagingSession(nil)
		sess.on("send_button", emptyResult())
		browser := &fakeBrowser{sessions: []*fakeSession{sess}}

		messaging := flow.NewMessaging(browser, store, tracer, inboxURL)

		err := messaging.Execute(t.Context(), "alice", "bob", "hello")
		assertSendFailed(t, err, serviceerr.ReasonSendControlMissing)
		assert.Equal(t, 3, sess.resolves["send_button"])
		assert.Equal(t, 1, sess.closes)
	})
}
