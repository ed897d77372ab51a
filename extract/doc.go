// Package extract fetches article pages and reduces them to plain text.
//
// Markup is walked with the golang.org/x/net/html tokenizer. Text inside
// script, style, nav, footer, header, noscript, svg, template and head
// elements is dropped; everything else is joined and whitespace-normalized.
// Non-2xx responses, non-HTML content, oversized bodies and pages with no
// text all fail with ErrExtraction.
package extract
