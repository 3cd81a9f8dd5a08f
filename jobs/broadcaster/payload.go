package broadcaster

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"reclaim/infra/journal"
)

// payloadVersion is bumped whenever report fields change meaning.
const payloadVersion = 1

// Encode turns a journal entry into the message key and a protobuf
// Struct value.
func Encode(e journal.Entry) (key, value []byte, err error) {
	s, err := structpb.NewStruct(map[string]any{
		"v":          payloadVersion,
		"type":       "reclaim.cycle",
		"instance":   e.Instance,
		"cycle":      float64(e.Cycle),
		"time":       float64(e.Time),
		"duration":   float64(e.Duration),
		"retired":    float64(e.Retired),
		"duplicates": float64(e.Duplicates),
		"live":       float64(e.Live),
		"misses":     float64(e.Misses),
		"freed":      float64(e.Freed),
		"carried":    float64(e.Carried),
		"stalled":    float64(e.Stalled),
	})
	if err != nil {
		return nil, nil, err
	}
	value, err = proto.Marshal(s)
	if err != nil {
		return nil, nil, err
	}
	return []byte(fmt.Sprintf("%s/%d", e.Instance, e.Cycle)), value, nil
}

// Decode parses a value produced by Encode.
func Decode(value []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(value, s); err != nil {
		return nil, err
	}
	return s, nil
}
