package messenger

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Tee sends every message to all sinks. It keeps going after a failure and
// returns the combined errors.
func Tee(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(ctx context.Context, msg Message) error {
		var result *multierror.Error
		for _, s := range active {
			if err := s.Send(ctx, msg); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	})
}
