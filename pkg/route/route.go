// Package route resolves every intake item to exactly one destination.
//
// Resolution is total and follows a fixed precedence, first match wins:
//
//  1. filename override (longest configured prefix)
//  2. sidecar route, routed_to or function
//  3. priority stage (stage mode only)
//  4. the mode's default destination
//
// Every destination returned is a member of the router's closed set.
package route

import (
	"sort"
	"strings"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Mode selects the closed destination set.
type Mode string

const (
	// ModeStage routes to stage directories (ACTIVE, WAITING, DONE, ...).
	ModeStage Mode = "stage"
	// ModeOffice routes to the fixed office inboxes.
	ModeOffice Mode = "office"
)

// Rule names the precedence step that produced a resolution.
type Rule string

const (
	RuleFilenameOverride Rule = "filename_override"
	RuleSidecarRoute     Rule = "sidecar_route"
	RuleFunctionMap      Rule = "function_to_office"
	RulePriority         Rule = "priority"
	RuleDefault          Rule = "default"
)

// Request is the input to Resolve.
type Request struct {
	Filename string
	Priority rules.Priority
	Sidecar  *Sidecar
}

// Resolution is the routing decision for one item.
type Resolution struct {
	Destination string
	Rule        Rule
	Action      snapshot.Action
	// Detail records the matched prefix, sidecar value or function name.
	Detail string
}

// Router resolves destinations within one closed set.
type Router struct {
	rules    *rules.Rules
	mode     Mode
	set      []string
	fallback string

	overrides map[string]string
	// prefixes sorted longest first.
	prefixes  []string
	functions map[string]string
}

// NewRouter builds a router for mode over the rule tables and routing config.
func NewRouter(mode Mode, r *rules.Rules, cfg config.RoutingConfig) *Router {
	rt := &Router{
		rules:     r,
		mode:      mode,
		overrides: make(map[string]string, len(cfg.FilenameOverrides)),
		functions: make(map[string]string, len(cfg.FunctionToOffice)),
	}

	switch mode {
	case ModeOffice:
		rt.set = append([]string(nil), r.Offices...)
		rt.fallback = r.DefaultOffice
	default:
		rt.mode = ModeStage
		rt.set = append([]string(nil), r.Stages...)
		rt.fallback = r.DefaultStage
	}

	for prefix, dest := range cfg.FilenameOverrides {
		if prefix == "" {
			continue
		}
		rt.overrides[prefix] = dest
		rt.prefixes = append(rt.prefixes, prefix)
	}
	sort.Slice(rt.prefixes, func(i, j int) bool {
		if len(rt.prefixes[i]) != len(rt.prefixes[j]) {
			return len(rt.prefixes[i]) > len(rt.prefixes[j])
		}
		return rt.prefixes[i] < rt.prefixes[j]
	})

	for name, office := range cfg.FunctionToOffice {
		rt.functions[rules.Fold(strings.TrimSpace(name))] = office
	}
	return rt
}

// NewStageRouter is NewRouter(ModeStage, ...).
func NewStageRouter(r *rules.Rules, cfg config.RoutingConfig) *Router {
	return NewRouter(ModeStage, r, cfg)
}

// NewOfficeRouter is NewRouter(ModeOffice, ...).
func NewOfficeRouter(r *rules.Rules, cfg config.RoutingConfig) *Router {
	return NewRouter(ModeOffice, r, cfg)
}

// Mode returns the router's mode.
func (rt *Router) Mode() Mode { return rt.mode }

// Destinations returns a copy of the closed destination set.
func (rt *Router) Destinations() []string {
	return append([]string(nil), rt.set...)
}

// Default returns the fallback destination.
func (rt *Router) Default() string { return rt.fallback }

// Contains reports whether dest is in the closed set (case-insensitive).
func (rt *Router) Contains(dest string) bool {
	_, ok := rules.Canonical(rt.set, dest)
	return ok
}

// Resolve returns the destination for req. It never returns an empty or
// out-of-set destination.
func (rt *Router) Resolve(req Request) Resolution {
	if res, ok := rt.byOverride(req.Filename); ok {
		return res
	}
	if res, ok := rt.bySidecar(req.Sidecar); ok {
		return res
	}
	if rt.mode == ModeStage {
		if res, ok := rt.byPriority(req.Priority); ok {
			return res
		}
	}
	return Resolution{
		Destination: rt.fallback,
		Rule:        RuleDefault,
		Action:      rt.defaultAction(),
	}
}

func (rt *Router) byOverride(filename string) (Resolution, bool) {
	if filename == "" {
		return Resolution{}, false
	}
	for _, prefix := range rt.prefixes {
		if !strings.HasPrefix(filename, prefix) {
			continue
		}
		dest, ok := rules.Canonical(rt.set, rt.overrides[prefix])
		if !ok {
			// An override naming something outside the set is ignored;
			// shorter prefixes may still apply.
			continue
		}
		return Resolution{Destination: dest, Rule: RuleFilenameOverride, Action: snapshot.ActionRoute, Detail: prefix}, true
	}
	return Resolution{}, false
}

func (rt *Router) bySidecar(sc *Sidecar) (Resolution, bool) {
	if sc == nil {
		return Resolution{}, false
	}
	for _, raw := range sc.Candidates() {
		value := LastSegment(raw)
		if value == "" {
			continue
		}
		if dest, ok := rules.Canonical(rt.set, value); ok {
			return Resolution{Destination: dest, Rule: RuleSidecarRoute, Action: snapshot.ActionRoute, Detail: raw}, true
		}
		if office, ok := rt.functions[rules.Fold(value)]; ok {
			if dest, ok := rules.Canonical(rt.set, office); ok {
				return Resolution{Destination: dest, Rule: RuleFunctionMap, Action: snapshot.ActionRoute, Detail: value}, true
			}
		}
	}
	return Resolution{}, false
}

func (rt *Router) byPriority(p rules.Priority) (Resolution, bool) {
	var stage string
	switch p {
	case rules.PriorityUrgent, rules.PriorityHigh:
		stage = rules.StageActive
	case rules.PriorityMedium:
		stage = rules.StageWaiting
	case rules.PriorityLow:
		stage = rules.StageDone
	default:
		return Resolution{}, false
	}
	dest, ok := rules.Canonical(rt.set, stage)
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Destination: dest, Rule: RulePriority, Action: ActionFor(p)}, true
}

func (rt *Router) defaultAction() snapshot.Action {
	if rt.mode == ModeStage {
		return snapshot.ActionArchive
	}
	return snapshot.ActionRoute
}

// ActionFor maps a priority to the triage action.
func ActionFor(p rules.Priority) snapshot.Action {
	switch p {
	case rules.PriorityUrgent:
		return snapshot.ActionEscalate
	case rules.PriorityHigh:
		return snapshot.ActionProcess
	case rules.PriorityMedium:
		return snapshot.ActionReview
	default:
		return snapshot.ActionArchive
	}
}

// LastSegment normalizes a declared route: dotted values keep the part
// after the last dot ("DDM.Finance" → "Finance").
func LastSegment(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
