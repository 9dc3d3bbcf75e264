package locator

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Engine resolves queries against Playwright pages. Resolution is
// best-effort per field: an unmatched field is simply absent in the result,
// engine-level lookup errors included.
type Engine struct {
	readyTimeout time.Duration
}

func NewEngine(readyTimeout time.Duration) *Engine {
	return &Engine{readyTimeout: readyTimeout}
}

// findFn abstracts the query scope: the page at the root, a parent element
// handle for nested blocks.
type findFn func(selector string) ([]playwright.ElementHandle, error)

// Resolve suspends until the page's network-idle signal or the bounded ready
// wait elapses, whichever comes first, then resolves every field of the
// query.
func (e *Engine) Resolve(page playwright.Page, query Query) *Result {
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(e.readyTimeout.Milliseconds())),
	})

	pageScope := func(selector string) ([]playwright.ElementHandle, error) {
		return page.QuerySelectorAll(selector)
	}

	return &Result{fields: resolveFields(query.Fields, pageScope)}
}

func resolveFields(fields []Field, find findFn) map[string]*Match {
	out := make(map[string]*Match, len(fields))
	for _, field := range fields {
		if match := resolveField(field, find); match != nil {
			out[field.Name] = match
		}
	}
	return out
}

func resolveField(field Field, find findFn) *Match {
	var handle playwright.ElementHandle

	switch {
	case len(field.Alternatives) > 0:
		handle = firstVisible(find, predicateSelectors(field.Alternatives))
		if handle == nil {
			return nil
		}
	case len(field.Children) == 0:
		// A bare field falls back to matching by its own name.
		handle = firstVisible(find, nameSelectors(field.Name))
		if handle == nil {
			return nil
		}
	}

	match := &Match{}
	if handle != nil {
		match.element = &handleElement{handle: handle}
	}

	if len(field.Children) > 0 {
		childScope := find
		if handle != nil {
			childScope = func(selector string) ([]playwright.ElementHandle, error) {
				return handle.QuerySelectorAll(selector)
			}
		}
		match.fields = resolveFields(field.Children, childScope)

		// A predicate-less container exists only through its children.
		if handle == nil && len(match.fields) == 0 {
			return nil
		}
	}

	return match
}

func firstVisible(find findFn, selectors []string) playwright.ElementHandle {
	for _, selector := range selectors {
		handles, err := find(selector)
		if err != nil {
			continue
		}
		for _, handle := range handles {
			visible, err := handle.IsVisible()
			if err == nil && visible {
				return handle
			}
		}
	}
	return nil
}

// predicateSelectors translates the field's alternatives into Playwright
// selectors, tried in order.
func predicateSelectors(alternatives []Predicate) []string {
	selectors := make([]string, 0, len(alternatives))
	for _, pred := range alternatives {
		switch pred.Attr {
		case "text":
			selectors = append(selectors, fmt.Sprintf("text=%q", pred.Value))
		case "class":
			selectors = append(selectors, fmt.Sprintf(`[class*=%q]`, pred.Value))
		default:
			selectors = append(selectors, fmt.Sprintf(`[%s=%q]`, pred.Attr, pred.Value))
		}
	}
	return selectors
}

// nameSelectors derives selectors from a bare field name, most specific
// first.
func nameSelectors(name string) []string {
	return []string{
		fmt.Sprintf(`[name=%q]`, name),
		fmt.Sprintf(`[data-testid=%q]`, name),
		fmt.Sprintf(`[aria-label=%q]`, name),
		"#" + name,
	}
}

type handleElement struct {
	handle playwright.ElementHandle
}

func (e *handleElement) Click() error {
	return e.handle.Click()
}

func (e *handleElement) Type(text string) error {
	return e.handle.Type(text)
}
