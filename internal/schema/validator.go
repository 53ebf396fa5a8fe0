package schema

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"interaction-gateway/internal/model"
)

type fieldType int

const (
	typeString fieldType = iota
	typeInteger
	typeNumber
	typeBoolean
	typeObject
)

type field struct {
	name     string
	typ      fieldType
	required bool
}

var envelopeFields = []field{
	{name: "event_id", typ: typeString},
	{name: "user_id", typ: typeString, required: true},
	{name: "video_id", typ: typeString, required: true},
	{name: "timestamp", typ: typeInteger},
	{name: "event_type", typ: typeString},
	{name: "session_id", typ: typeString},
	{name: "device_info", typ: typeObject},
	{name: "geo_location", typ: typeObject},
}

var (
	watchFields = []field{
		{name: "watch_duration_ms", typ: typeInteger, required: true},
		{name: "video_duration_ms", typ: typeInteger, required: true},
		{name: "watch_percentage", typ: typeNumber},
		{name: "playback_quality", typ: typeString},
		{name: "is_autoplay", typ: typeBoolean},
		{name: "is_fullscreen", typ: typeBoolean},
	}
	likeFields = []field{
		{name: "is_liked", typ: typeBoolean, required: true},
	}
	commentFields = []field{
		{name: "comment_id", typ: typeString, required: true},
		{name: "comment_text", typ: typeString},
		{name: "parent_comment_id", typ: typeString},
	}
	skipFields = []field{
		{name: "skip_time_ms", typ: typeInteger, required: true},
		{name: "skip_type", typ: typeString},
	}
)

func fieldsFor(kind model.Kind) []field {
	var variant []field
	switch kind {
	case model.KindWatch:
		variant = watchFields
	case model.KindLike:
		variant = likeFields
	case model.KindComment:
		variant = commentFields
	case model.KindSkip:
		variant = skipFields
	}
	out := make([]field, 0, len(envelopeFields)+len(variant))
	out = append(out, envelopeFields...)
	return append(out, variant...)
}

// Validator turns an untyped record into a validated event of a given kind.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewValidator builds a Validator using the wall clock and random UUIDs.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate: v,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Validate checks presence and types, decodes, applies defaults and then
// checks value constraints. Unknown keys are ignored.
func (v *Validator) Validate(kind model.Kind, raw map[string]any) (model.Event, error) {
	event, err := model.New(kind)
	if err != nil {
		return nil, &UnknownEventKindError{Kind: string(kind)}
	}

	clean, fieldErrs := checkFields(raw, fieldsFor(kind))
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		Result:  event,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(clean); err != nil {
		return nil, newValidationError("payload", ReasonMalformed)
	}

	v.applyDefaults(event, clean)

	if err := v.validate.Struct(event); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		out := &ValidationError{}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, model.FieldError{Field: fe.Field(), Reason: reasonFor(fe.Tag())})
		}
		return nil, out
	}

	return event, nil
}

func (v *Validator) applyDefaults(event model.Event, clean map[string]any) {
	h := event.Header()
	h.EventType = event.Kind()
	if h.EventID == "" {
		h.EventID = v.newID()
	}
	if _, ok := clean["timestamp"]; !ok {
		h.Timestamp = v.now().UnixMilli()
	}
	if skip, ok := event.(*model.SkipEvent); ok && skip.SkipType == "" {
		skip.SkipType = model.SkipManual
	}
}

// checkFields returns the known, non-null fields of raw with numbers
// normalized to int64 or float64.
func checkFields(raw map[string]any, fields []field) (map[string]any, []model.FieldError) {
	clean := make(map[string]any, len(fields))
	var errs []model.FieldError
	for _, f := range fields {
		val, ok := raw[f.name]
		if !ok || val == nil {
			if f.required {
				errs = append(errs, model.FieldError{Field: f.name, Reason: ReasonMissing})
			}
			continue
		}
		normalized, ok := coerce(val, f.typ)
		if !ok {
			errs = append(errs, model.FieldError{Field: f.name, Reason: ReasonWrongType})
			continue
		}
		clean[f.name] = normalized
	}
	return clean, errs
}

func coerce(val any, typ fieldType) (any, bool) {
	switch typ {
	case typeString:
		s, ok := val.(string)
		return s, ok
	case typeBoolean:
		b, ok := val.(bool)
		return b, ok
	case typeObject:
		m, ok := val.(map[string]any)
		return m, ok
	case typeNumber:
		f, ok := toFloat(val)
		return f, ok
	case typeInteger:
		f, ok := toFloat(val)
		if !ok || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return nil, false
		}
		if n, isNumber := val.(json.Number); isNumber {
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		}
		return int64(f), true
	}
	return nil, false
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return ReasonMissing
	case "gt", "gte", "lt", "lte":
		return ReasonOutOfRange
	case "oneof":
		return ReasonInvalidValue
	default:
		return tag
	}
}
