// Package eventstreamutils selects an eventstream.Publisher from configuration.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/corpus/pkg/eventstream"
	"github.com/papercomputeco/corpus/pkg/eventstream/kafka"
	"github.com/papercomputeco/corpus/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	Type     string
	Brokers  []string
	Topic    string
	ClientID string
}

// NewPublisher returns a no-op publisher unless a backend is configured.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.Type {
	case "", "none", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers:  o.Brokers,
			Topic:    o.Topic,
			ClientID: o.ClientID,
		})
	default:
		return nil, fmt.Errorf("unsupported eventstream type: %s", o.Type)
	}
}
