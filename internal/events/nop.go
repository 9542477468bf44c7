package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// NopPublisher drops events; used when no kafka brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event Event) error {
	log.Tracef("event dropped: %s [%s]", event.ID, event.Type)
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
