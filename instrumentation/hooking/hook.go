// Package hooking lets observers attach to the engine, the networks and the
// coherence system without those domains knowing who is listening.
package hooking

// HookPos names a site where a domain raises hooks. Positions are compared by
// pointer, so each site declares one package-level HookPos.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation of the hooks.
type HookCtx struct {
	// Domain raised the hook.
	Domain Hookable

	// Pos is the site that raised the hook.
	Pos *HookPos

	// Item is the subject of the hook, such as an event, a message, a
	// protocol step or a task. Each position documents its item type.
	Item any

	// Detail is optional extra data.
	Detail any
}

// Hookable is a domain that hooks can attach to.
type Hookable interface {
	// AcceptHook registers a hook. Hooks are registered before the
	// simulation runs and are never removed.
	AcceptHook(hook Hook)

	// NumHooks returns the number of registered hooks. Domains check it to
	// skip building hook contexts nobody listens to.
	NumHooks() int

	// Hooks returns the registered hooks in registration order.
	Hooks() []Hook

	// InvokeHook calls every registered hook with ctx.
	InvokeHook(ctx HookCtx)
}

// Hook is invoked by the domains it is registered with.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// AtPos returns a hook that calls f only for contexts raised at pos.
func AtPos(pos *HookPos, f HookFunc) Hook {
	return HookFunc(func(ctx HookCtx) {
		if ctx.Pos == pos {
			f(ctx)
		}
	})
}

// HookableBase implements Hookable. Domains embed a *HookableBase.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{hooks: make([]Hook, 0)}
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook registers a hook. Registering the same hook value twice panics.
// Function hooks are not comparable and are never reported as duplicates.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, existing := range h.hooks {
			if existing == hook {
				panic("hooking: duplicated hook")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
