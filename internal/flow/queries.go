package flow

import "github.com/instapipe/dm-manager/internal/locator"

// The queries below describe the page structures the flows depend on.
// Field names mirror what the flow code reads back from the result;
// predicate alternatives absorb markup variants of the same widget.
var (
	loginFormQuery = locator.MustParse(`{
		login_form {
			username_input(name='username' or aria-label='Phone number, username, or email')
			password_input(name='password' or aria-label='Password')
			login_btn(type='submit')
		}
	}`)

	loginOutcomeQuery = locator.MustParse(`{
		save_info_prompt(text='Save your login info?')
		home_icon(aria-label='Home')
		messages_icon(aria-label='Direct')
	}`)

	notificationPromptQuery = locator.MustParse(`{
		notification_prompt {
			not_now_btn(text='Not Now')
		}
	}`)

	composeQuery = locator.MustParse(`{
		new_message_btn(aria-label='New message')
	}`)

	recipientInputQuery = locator.MustParse(`{
		recipient_input(placeholder='Search...')
	}`)

	chatSuggestionQuery = locator.MustParse(`{
		chat_suggestion(role='button')
	}`)

	chatButtonQuery = locator.MustParse(`{
		chat_button(text='Chat')
	}`)

	inviteSentQuery = locator.MustParse(`{
		invite_sent_message(text='Invite sent')
	}`)

	composerQuery = locator.MustParse(`{
		message_box(aria-label='Message...')
	}`)

	sendButtonQuery = locator.MustParse(`{
		send_button(aria-label='Send')
	}`)
)
