package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var errTrailingData = errors.New("invalid character after top-level value")

// Kind is the event-type discriminator carried in the event_type field.
type Kind string

const (
	KindWatch   Kind = "video_watch"
	KindLike    Kind = "video_like"
	KindComment Kind = "video_comment"
	KindSkip    Kind = "video_skip"
)

// Kinds lists every supported event kind.
var Kinds = []Kind{KindWatch, KindLike, KindComment, KindSkip}

// ParseKind reports whether s names a supported event kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindWatch, KindLike, KindComment, KindSkip:
		return k, true
	default:
		return "", false
	}
}

// Skip types.
const (
	SkipManual         = "manual"
	SkipAuto           = "auto"
	SkipRecommendation = "recommendation"
)

// Envelope holds the fields shared by every interaction event.
type Envelope struct {
	EventID     string         `json:"event_id" validate:"required"`
	UserID      string         `json:"user_id" validate:"required"`
	VideoID     string         `json:"video_id" validate:"required"`
	Timestamp   int64          `json:"timestamp" validate:"gt=0"`
	EventType   Kind           `json:"event_type"`
	SessionID   *string        `json:"session_id,omitempty"`
	DeviceInfo  map[string]any `json:"device_info,omitempty"`
	GeoLocation map[string]any `json:"geo_location,omitempty"`
}

// Header returns the shared envelope of the event.
func (e *Envelope) Header() *Envelope { return e }

// Event is implemented by the four interaction variants only.
type Event interface {
	Header() *Envelope
	Kind() Kind
	sealed()
}

// WatchEvent records how much of a video a user watched.
type WatchEvent struct {
	Envelope
	WatchDurationMs int64    `json:"watch_duration_ms" validate:"gte=0"`
	VideoDurationMs int64    `json:"video_duration_ms" validate:"gte=0"`
	WatchPercentage *float64 `json:"watch_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	PlaybackQuality *string  `json:"playback_quality,omitempty"`
	IsAutoplay      bool     `json:"is_autoplay"`
	IsFullscreen    bool     `json:"is_fullscreen"`
}

// LikeEvent records a like (IsLiked) or its retraction.
type LikeEvent struct {
	Envelope
	IsLiked bool `json:"is_liked"`
}

// CommentEvent records a comment or, with ParentCommentID, a reply.
type CommentEvent struct {
	Envelope
	CommentID       string  `json:"comment_id" validate:"required"`
	CommentText     *string `json:"comment_text,omitempty"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

// SkipEvent records a user skipping away from a video.
type SkipEvent struct {
	Envelope
	SkipTimeMs int64  `json:"skip_time_ms" validate:"gte=0"`
	SkipType   string `json:"skip_type" validate:"oneof=manual auto recommendation"`
}

func (*WatchEvent) Kind() Kind   { return KindWatch }
func (*LikeEvent) Kind() Kind    { return KindLike }
func (*CommentEvent) Kind() Kind { return KindComment }
func (*SkipEvent) Kind() Kind    { return KindSkip }

func (*WatchEvent) sealed()   {}
func (*LikeEvent) sealed()    {}
func (*CommentEvent) sealed() {}
func (*SkipEvent) sealed()    {}

// New returns an empty event of the given kind.
func New(kind Kind) (Event, error) {
	switch kind {
	case KindWatch:
		return &WatchEvent{}, nil
	case KindLike:
		return &LikeEvent{}, nil
	case KindComment:
		return &CommentEvent{}, nil
	case KindSkip:
		return &SkipEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}

// Decode deserializes an event written to the interaction topic.
// Numbers inside opaque objects are kept as json.Number.
func Decode(data []byte) (Event, error) {
	var head struct {
		EventType Kind `json:"event_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event header: %w", err)
	}

	event, err := New(head.EventType)
	if err != nil {
		return nil, err
	}

	if err := DecodeJSON(data, event); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.EventType, err)
	}
	return event, nil
}

// DecodeJSON behaves like json.Unmarshal but keeps numbers as json.Number,
// so integers beyond float64 precision survive until they are validated.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}
