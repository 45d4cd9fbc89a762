package templates

import (
	"context"

	"github.com/a-h/templ"
)

// Layout wraps a page body with the shared head and navigation.
func Layout(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(` · Excel Cleaner</title><link rel="stylesheet" href="/static/style.css"></head><body>`)
		h.raw(`<header class="nav"><a class="brand" href="/">Excel Cleaner</a><a href="/history">History</a></header>`)
		h.raw(`<main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<div class="alert alert-error" role="alert"><p class="message">`)
		h.text(message)
		h.raw(`</p>`)
		if action != "" {
			h.raw(`<p class="action">`)
			h.text(action)
			h.raw(`</p>`)
		}
		h.raw(`<small class="code">Code: `)
		h.text(code)
		h.raw(`</small></div>`)
	})
}
