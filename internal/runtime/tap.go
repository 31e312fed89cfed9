package runtime

import (
	"fmt"
	"math"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/logging"
)

// tapName is the subscriber name of the event tap.
const tapName = "tap"

// installTap subscribes a lowest-priority wildcard handler that logs every
// event whose type matches pattern. Segments are separated by '.', so
// "sensor.*" matches "sensor.temp" but not "sensor.temp.raw".
func installTap(bus *event.Bus, pattern string, logger *logging.Logger) (*event.Subscription, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, fmt.Errorf("invalid event filter %q: %w", pattern, err)
	}

	logger = logger.WithSubscriber(tapName)
	sub := bus.SubscribeAll(func(in event.Input) error {
		if g.Match(in.Type) {
			logger.Debug("event",
				"type", in.Type,
				"producer", in.ProducerID,
				"data", in.Data,
				"timestamp", in.Timestamp)
		}
		return nil
	}, event.WithPriority(math.MinInt), event.WithName(tapName))
	return sub, nil
}
