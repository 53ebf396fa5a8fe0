package schema

import (
	"github.com/shopspring/decimal"

	"interaction-gateway/internal/model"
)

// Factory builds validated events from raw client payloads. It performs no
// I/O.
type Factory struct {
	validator *Validator
}

// NewFactory constructs a Factory.
func NewFactory() *Factory {
	return &Factory{validator: NewValidator()}
}

// Build validates raw as an event of kind and computes derived fields.
// A payload event_type that disagrees with kind is rejected.
func (f *Factory) Build(kind model.Kind, raw map[string]any) (model.Event, error) {
	switch kind {
	case model.KindWatch, model.KindLike, model.KindComment, model.KindSkip:
	default:
		return nil, &UnknownEventKindError{Kind: string(kind)}
	}

	if declared, ok := raw["event_type"].(string); ok && declared != string(kind) {
		return nil, newValidationError("event_type", ReasonKindMismatch)
	}

	event, err := f.validator.Validate(kind, raw)
	if err != nil {
		return nil, err
	}

	Derive(event)
	return event, nil
}

// BuildFromPayload resolves the kind from the payload's own discriminator
// (event_type, or event_kind as a fallback) and builds the event.
func (f *Factory) BuildFromPayload(raw map[string]any) (model.Event, error) {
	declared := raw["event_type"]
	if declared == nil {
		declared = raw["event_kind"]
	}
	if declared == nil {
		return nil, newValidationError("event_type", ReasonMissing)
	}

	name, ok := declared.(string)
	if !ok {
		return nil, newValidationError("event_type", ReasonWrongType)
	}

	kind, ok := model.ParseKind(name)
	if !ok {
		return nil, &UnknownEventKindError{Kind: name}
	}
	return f.Build(kind, raw)
}

// Derive fills fields computed from other fields of a validated event.
func Derive(event model.Event) {
	switch e := event.(type) {
	case *model.WatchEvent:
		if e.WatchPercentage == nil && e.VideoDurationMs > 0 {
			pct := WatchPercentage(e.WatchDurationMs, e.VideoDurationMs)
			e.WatchPercentage = &pct
		}
	}
}

// WatchPercentage returns watched/total*100 rounded to two decimals with
// ties to even. total must be positive.
func WatchPercentage(watched, total int64) float64 {
	pct, _ := decimal.NewFromInt(watched).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 20).
		RoundBank(2).
		Float64()
	return pct
}
