package browser

import (
	"strings"
	"sync"
)

const noteSeparator = "\n\n---\n\n"

// Notebook accumulates findings saved while browsing. Each entry is
// prefixed with the URL it was captured on.
type Notebook struct {
	mu      sync.Mutex
	entries []string
}

// Append records a note under the given URL.
func (n *Notebook) Append(url, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, "## "+url+"\n"+strings.TrimSpace(text))
}

// Content returns the rendered notebook.
func (n *Notebook) Content() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return strings.Join(n.entries, noteSeparator)
}

// Replace throws away every note and starts over with a single entry.
func (n *Notebook) Replace(url, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = []string{"## " + url + "\n" + strings.TrimSpace(text)}
}

// Clear discards all notes.
func (n *Notebook) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = nil
}

// Empty reports whether the notebook has no notes.
func (n *Notebook) Empty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries) == 0
}
