package stream

import (
	"context"
	"errors"
)

// teeSink forwards every event to all of its sinks in order.
type teeSink []Sink

// Tee returns a Sink that sends each event to every sink in order and stops
// at the first Send error. Close closes all sinks and joins their errors.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t teeSink) Send(ctx context.Context, ev Event) error {
	for _, s := range t {
		if err := s.Send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}
