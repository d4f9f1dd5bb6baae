package broker

import (
	"bytes"
	"encoding/json"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/pkg/errors"
)

// ErrUnknownCommand is returned for payloads carrying no known field.
var ErrUnknownCommand = errors.New("unknown command")

// DecodeCommand parses an inbound payload. Unknown fields, wrong types
// and payloads without a recognised flag are rejected.
func DecodeCommand(payload []byte) (entities.Command, error) {
	var command entities.Command
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&command); err != nil {
		return entities.Command{}, errors.Wrap(err, "malformed command")
	}
	if command.LED == nil {
		return entities.Command{}, ErrUnknownCommand
	}
	return command, nil
}

// CommandFilter remembers command ids so a redelivered command is not
// applied twice. The filter is cleared once the ids recorded reach the
// reset percentage of its capacity, before false positives pile up.
type CommandFilter struct {
	mu                           sync.Mutex
	filter                       *bloomFilter.BloomFilter
	capacity                     uint
	recorded                     uint
	maximumPercentageFilterUsage float32
}

// NewCommandFilter sizes the filter for capacity ids at the given false
// positive probability.
func NewCommandFilter(capacity uint, duplicationProbability float64, maximumPercentageFilterUsage float32) *CommandFilter {
	if capacity == 0 {
		capacity = 1
	}
	return &CommandFilter{
		filter:                       bloomFilter.NewWithEstimates(capacity, duplicationProbability),
		capacity:                     capacity,
		maximumPercentageFilterUsage: maximumPercentageFilterUsage,
	}
}

// Seen reports whether id was already recorded and records it otherwise.
func (f *CommandFilter) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filter.TestString(id) {
		return true
	}
	f.resetWhenSaturated()
	f.filter.AddString(id)
	f.recorded++
	return false
}

func (f *CommandFilter) resetWhenSaturated() {
	currentPercentageFilterUsage := (float32(f.recorded) / float32(f.capacity)) * 100
	if currentPercentageFilterUsage >= f.maximumPercentageFilterUsage {
		f.filter.ClearAll()
		f.recorded = 0
	}
}
