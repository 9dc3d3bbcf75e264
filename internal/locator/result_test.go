package locator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/instapipe/dm-manager/internal/locator"
)

type fakeElement struct {
	clicks int
	typed  string
}

func (f *fakeElement) Click() error { f.clicks++; return nil }

func (f *fakeElement) Type(text string) error { f.typed += text; return nil }

func TestResult_NilSafety(t *testing.T) {
	var res *locator.Result

	assert.False(t, res.Field("anything").Present())
	assert.Nil(t, res.Field("anything").Field("nested").Element())
}

func TestResult_FieldAccess(t *testing.T) {
	el := &fakeElement{}
	res := locator.NewResult(map[string]*locator.Match{
		"send_button": locator.NewMatch(el, nil),
		"notification_prompt": locator.NewMatch(nil, map[string]*locator.Match{
			"not_now_btn": locator.NewMatch(&fakeElement{}, nil),
		}),
	})

	assert.True(t, res.Field("send_button").Present())
	assert.Same(t, el, res.Field("send_button").Element())

	// Containers are present through their children even without an element
	// of their own.
	prompt := res.Field("notification_prompt")
	assert.True(t, prompt.Present())
	assert.Nil(t, prompt.Element())
	assert.True(t, prompt.Field("not_now_btn").Present())

	// Absence is a valid terminal state at any depth.
	assert.False(t, res.Field("chat_button").Present())
	assert.False(t, prompt.Field("missing_child").Present())
}

func TestMatch_EmptyContainerIsAbsent(t *testing.T) {
	m := locator.NewMatch(nil, nil)
	assert.False(t, m.Present())
}
