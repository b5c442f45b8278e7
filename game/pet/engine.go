// Package pet holds the pet game: the vitals transition rules and the service
// that persists them with an event history.
package pet

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/heropets/server/model"
)

// Action is a state-changing pet game move.
type Action string

const (
	ActionFeed   Action = "feed"
	ActionWalk   Action = "walk"
	ActionPlay   Action = "play"
	ActionHeal   Action = "heal"
	ActionDress  Action = "dress"
	ActionSicken Action = "sicken"
)

// routeActions maps the public route verbs, which are also the action names
// stored by the pre-migration deployment, to actions.
var routeActions = map[string]Action{
	"alimentar": ActionFeed,
	"pasear":    ActionWalk,
	"jugar":     ActionPlay,
	"curar":     ActionHeal,
	"vestir":    ActionDress,
	"enfermar":  ActionSicken,
}

// RouteAction accepts only the public route verbs.
func RouteAction(verb string) (Action, bool) {
	a, ok := routeActions[verb]
	return a, ok
}

// ParseAction accepts either an action name or its route verb.
func ParseAction(s string) (Action, bool) {
	if a, ok := RouteAction(s); ok {
		return a, true
	}
	switch a := Action(s); a {
	case ActionFeed, ActionWalk, ActionPlay, ActionHeal, ActionDress, ActionSicken:
		return a, true
	}
	return "", false
}

// Illnesses is the closed set of illnesses a pet can catch.
var Illnesses = []string{"Sarpullido", "Gripa", "Piel de Salchicha", "Piojos de lata"}

const (
	MinVital = 0
	MaxVital = 100

	// FedHunger is the hunger value feeding sets. Walking and playing raise
	// hunger toward the same value, so a high number reads both as "full" and
	// as "starving". Kept as is until the scale is settled.
	FedHunger = MaxVital
)

var (
	ErrInvalidIllness = errors.New("invalid illness")
	ErrEmptyItem      = errors.New("item is required")
	ErrPetDead        = errors.New("pet is not alive")
	ErrUnknownAction  = errors.New("unknown action")
)

// Vitals is the mutable part of a pet the engine works on.
type Vitals struct {
	Happiness   int
	Hunger      int
	Illness     *string
	Alive       bool
	CustomItems []string
}

// VitalsOf copies the vitals out of p.
func VitalsOf(p *model.Pet) Vitals {
	return Vitals{
		Happiness:   p.Happiness,
		Hunger:      p.Hunger,
		Illness:     p.Illness,
		Alive:       p.Alive,
		CustomItems: slices.Clone([]string(p.CustomItems)),
	}
}

// WriteTo stores v back into p.
func (v Vitals) WriteTo(p *model.Pet) {
	p.Happiness = v.Happiness
	p.Hunger = v.Hunger
	p.Illness = v.Illness
	p.Alive = v.Alive
	p.CustomItems = v.CustomItems
}

// Result describes the outcome of an action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Clamp pins a vital into [MinVital, MaxVital].
func Clamp(v int) int {
	return min(max(v, MinVital), MaxVital)
}

func Feed(v Vitals) (Vitals, Result) {
	v.Hunger = FedHunger
	return v, Result{Success: true, Message: "pet fed"}
}

func Walk(v Vitals) (Vitals, Result) {
	v.Happiness = Clamp(v.Happiness + 10)
	v.Hunger = Clamp(v.Hunger + 5)
	return v, Result{Success: true, Message: "pet went for a walk"}
}

func Play(v Vitals) (Vitals, Result) {
	v.Happiness = Clamp(v.Happiness + 15)
	v.Hunger = Clamp(v.Hunger + 10)
	return v, Result{Success: true, Message: "pet played"}
}

// Heal clears any illness. Healing a healthy pet still cheers it up.
func Heal(v Vitals) (Vitals, Result) {
	v.Illness = nil
	v.Happiness = Clamp(v.Happiness + 5)
	return v, Result{Success: true, Message: "pet healed"}
}

// Sicken gives the pet one of Illnesses. Any other name is rejected and v is
// returned untouched.
func Sicken(v Vitals, illness string) (Vitals, Result, error) {
	if !slices.Contains(Illnesses, illness) {
		return v, Result{}, fmt.Errorf("%w: %q", ErrInvalidIllness, illness)
	}
	v.Illness = &illness
	return v, Result{Success: true, Message: "pet sickened with " + illness}, nil
}

// Dress appends item to the pet's custom items. Duplicates are kept.
func Dress(v Vitals, item string) (Vitals, Result, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return v, Result{}, ErrEmptyItem
	}
	v.CustomItems = append(slices.Clone(v.CustomItems), item)
	return v, Result{Success: true, Message: "item " + item + " added to pet"}, nil
}

// Apply runs action against v. arg is the illness for ActionSicken and the
// item for ActionDress, ignored otherwise.
func Apply(v Vitals, action Action, arg string) (Vitals, Result, error) {
	if !v.Alive {
		return v, Result{}, ErrPetDead
	}
	switch action {
	case ActionFeed:
		next, res := Feed(v)
		return next, res, nil
	case ActionWalk:
		next, res := Walk(v)
		return next, res, nil
	case ActionPlay:
		next, res := Play(v)
		return next, res, nil
	case ActionHeal:
		next, res := Heal(v)
		return next, res, nil
	case ActionSicken:
		return Sicken(v, arg)
	case ActionDress:
		return Dress(v, arg)
	default:
		return v, Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Status is the public projection of a pet returned by the game routes.
type Status struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Age         float64 `json:"age"`
	OwnerUserID *int64  `json:"ownerUserId"`
	Happiness   int     `json:"happiness"`
	Hunger      int     `json:"hunger"`
}

// StatusOf projects p.
func StatusOf(p *model.Pet) Status {
	return Status{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		Age:         p.Age,
		OwnerUserID: p.OwnerUserID,
		Happiness:   p.Happiness,
		Hunger:      p.Hunger,
	}
}

// History is a pet's status plus its action log, oldest first.
type History struct {
	Status Status            `json:"status"`
	Events []model.GameEvent `json:"history"`
}
