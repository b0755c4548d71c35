package actions

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// ParamKind is the kind of value a parameter takes.
type ParamKind int

const (
	ParamBlockType ParamKind = iota // block/item name substring
	ParamPlayer                     // player identity
)

func (k ParamKind) String() string {
	switch k {
	case ParamBlockType:
		return "blockType"
	case ParamPlayer:
		return "playerName"
	default:
		return "unknown"
	}
}

// ParamSpec is one entry of an action's parameter contract.
type ParamSpec struct {
	Name string
	Kind ParamKind
}

// Handler runs an action against the world.
type Handler func(ctx context.Context, r *Registry, p types.Params) (string, error)

// Definition describes one named action.
type Definition struct {
	Name        types.ActionName
	Description string
	Params      []ParamSpec
	// Announce, if set, returns the progress line the handler sends
	// through the ctx Notifier once the work is about to start.
	Announce func(p types.Params) string
	Execute  Handler
}

// SearchConfig holds search bounds for world lookups.
type SearchConfig struct {
	SearchRadius int // mine_block find radius
	LookRadius   int // look_around radius
	LookSamples  int // look_around block sample cap
	LookTypes    int // look_around distinct block type cap
	FollowRange  float64
}

// DefaultSearchConfig returns the stock search bounds.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		SearchRadius: 32,
		LookRadius:   10,
		LookSamples:  20,
		LookTypes:    5,
		FollowRange:  1,
	}
}

// Registry is the fixed name -> action mapping. Built once by New and
// read-only afterwards; safe for concurrent use.
type Registry struct {
	world world.World
	cfg   SearchConfig
	defs  map[types.ActionName]*Definition
	names []types.ActionName
}

// New builds the registry over w. Zero config fields take defaults.
func New(w world.World, cfg SearchConfig) *Registry {
	def := DefaultSearchConfig()
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = def.SearchRadius
	}
	if cfg.LookRadius <= 0 {
		cfg.LookRadius = def.LookRadius
	}
	if cfg.LookSamples <= 0 {
		cfg.LookSamples = def.LookSamples
	}
	if cfg.LookTypes <= 0 {
		cfg.LookTypes = def.LookTypes
	}
	if cfg.FollowRange <= 0 {
		cfg.FollowRange = def.FollowRange
	}

	r := &Registry{
		world: w,
		cfg:   cfg,
		defs:  make(map[types.ActionName]*Definition),
	}
	for _, d := range builtinDefinitions() {
		r.defs[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Slice(r.names, func(i, j int) bool { return r.names[i] < r.names[j] })

	L_debug("actions: registry built", "count", len(r.names))
	return r
}

// Config returns the effective search bounds.
func (r *Registry) Config() SearchConfig {
	return r.cfg
}

// World returns the collaborator actions run against.
func (r *Registry) World() world.World {
	return r.world
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name types.ActionName) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Has reports whether name is a registered action.
func (r *Registry) Has(name types.ActionName) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns all action names, sorted.
func (r *Registry) Names() []types.ActionName {
	return append([]types.ActionName(nil), r.names...)
}

// Definitions returns all definitions in name order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.defs[n])
	}
	return out
}

// AliasKind is the kind a single free-text model parameter maps to for name.
// ok is false for actions that take no parameters.
func (r *Registry) AliasKind(name types.ActionName) (ParamKind, bool) {
	d, ok := r.defs[name]
	if !ok || len(d.Params) == 0 {
		return 0, false
	}
	return d.Params[0].Kind, true
}

// Announcement returns the progress line for an invocation, or "".
func (r *Registry) Announcement(name types.ActionName, p types.Params) string {
	d, ok := r.defs[name]
	if !ok || d.Announce == nil {
		return ""
	}
	return d.Announce(p)
}

// Execute runs the named action. It never panics: every failure, including
// a panicking handler, comes back as an *ActionError.
func (r *Registry) Execute(ctx context.Context, name types.ActionName, p types.Params) (text string, err error) {
	d, ok := r.defs[name]
	if !ok {
		MetricFailWithReason("actions", string(name), "unknown")
		return "", newError(ErrUnknownAction, name, "", nil)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			L_error("actions: handler panicked", "action", name, "panic", rec, "stack", string(debug.Stack()))
			text = ""
			err = newError(ErrPanic, name, "", fmt.Errorf("%v", rec))
		}
		MetricDuration("actions", string(name), time.Since(start))
		if err != nil {
			MetricFailWithReason("actions", string(name), kindLabel(err))
			L_debug("actions: failed", "action", name, "error", err)
			return
		}
		MetricSuccess("actions", string(name))
		L_debug("actions: done", "action", name, "result", text, "elapsed", time.Since(start))
	}()

	L_info("actions: execute", "action", name, "blockType", p.BlockType, "player", p.PlayerName)
	return d.Execute(ctx, r, p)
}

func kindLabel(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) && ae.Kind != nil {
		return ae.Kind.Error()
	}
	return "error"
}
