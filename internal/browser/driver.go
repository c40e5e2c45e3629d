// Package browser adapts a raw page driver into the viewport the model
// interacts with: a numbered list of typed elements plus a notebook for
// findings.
package browser

import "context"

// RawElement is what the underlying driver reports for a visible node.
// Identifiers are stable for the lifetime of the page.
type RawElement struct {
	ID          string
	Tag         string
	Text        string
	Value       string
	Placeholder string
	Label       string
	Name        string
	Title       string
}

// Driver is the raw page automation surface. Implementations drive a real
// browser; tests use a fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ViewportElements(ctx context.Context) ([]RawElement, error)
	Click(ctx context.Context, elementID string) error
	TypeText(ctx context.Context, elementID, text string) error
	ScrollDown(ctx context.Context) error
	Close(ctx context.Context) error
}
