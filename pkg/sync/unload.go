package sync

import (
	"fmt"
	"strings"
	"sync"

	"github.com/stefanpenner/horizon/pkg/store"
)

// UnloadGuard tracks whether any category has unsynced changes and asks for
// confirmation before the user leaves.
type UnloadGuard struct {
	mu    sync.Mutex
	dirty map[store.Category]bool
}

// NewUnloadGuard subscribes a guard to e.
func NewUnloadGuard(e *Engine) *UnloadGuard {
	g := &UnloadGuard{dirty: make(map[store.Category]bool, len(store.Categories))}
	e.Subscribe(g.observe)
	return g
}

func (g *UnloadGuard) observe(st Status) {
	g.mu.Lock()
	g.dirty[st.Category] = st.Dirty
	g.mu.Unlock()
}

// Blocked reports whether leaving now would lose unsynced changes.
func (g *UnloadGuard) Blocked() bool {
	return len(g.DirtyCategories()) > 0
}

// DirtyCategories lists unsynced categories in display order.
func (g *UnloadGuard) DirtyCategories() []store.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []store.Category
	for _, c := range store.Categories {
		if g.dirty[c] {
			out = append(out, c)
		}
	}
	return out
}

// Message is the confirmation prompt shown while blocked.
func (g *UnloadGuard) Message() string {
	cats := g.DirtyCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return fmt.Sprintf("Unsynced changes in %s. Leave anyway?", strings.Join(names, ", "))
}

// Leave returns true when the caller may go. While blocked it defers to
// confirm with the prompt message.
func (g *UnloadGuard) Leave(confirm func(msg string) bool) bool {
	if !g.Blocked() {
		return true
	}
	return confirm != nil && confirm(g.Message())
}
