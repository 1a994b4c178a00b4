package collectors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// Dataset binds a dataset code to the upstream query serving it.
// Params are copied into the source binding of the default metadata.
type Dataset struct {
	Code        string
	QueryCode   string
	Name        string
	Unit        string
	Description string
	Params      map[string]string
}

// Binding returns the source binding of d under org.
func (d Dataset) Binding(org string) domain.SourceBinding {
	return domain.SourceBinding{OrganizationCode: org, QueryCode: d.QueryCode, Params: d.Params}
}

// Emit delivers one event to the consumer. It blocks until the consumer
// has handled the event and fails once ctx is done, so no further request
// is made while a consumer holds back.
type Emit func(domain.CollectEvent) error

// Stream runs fn in its own goroutine and returns the channel pair the
// Collector contract expects. A non-nil error from fn is sent on the
// error channel; both channels are closed when fn returns.
func Stream(
	ctx context.Context,
	fn func(ctx context.Context, emit Emit) error,
) (<-chan domain.CollectEvent, <-chan error) {
	events := make(chan domain.CollectEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		emit := func(ev domain.CollectEvent) error {
			ev.Done = make(chan struct{})
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case <-ev.Done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := fn(ctx, emit); err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()

	return events, errs
}

// Drain reads a collection to the end, marking every event handled, and
// returns the events with the collector's error.
func Drain(events <-chan domain.CollectEvent, errs <-chan error) ([]domain.CollectEvent, error) {
	var out []domain.CollectEvent
	for ev := range events {
		ev.Handled()
		out = append(out, ev)
	}
	return out, <-errs
}

// Payload marshals record and attaches the country and year hints used
// for deduplication.
func Payload(record any, countryCode string, year int) (domain.RawPayload, error) {
	raw, ok := record.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(record)
		if err != nil {
			return domain.RawPayload{}, fmt.Errorf("marshal record: %w", err)
		}
		raw = b
	}
	return domain.RawPayload{CountryCode: countryCode, Year: year, Raw: raw}, nil
}
