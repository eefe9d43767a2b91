package broker

import (
	"pubsub/broker/subscription"
	"pubsub/broker/topic"
	"pubsub/types/client/request"
)

// Service is the set of broker operations used by the transport controllers.
type Service interface {
	CreateTopic(name string) bool
	Topics() []topic.Info
	Stats() Stats
	SessionCount() int
	Subscribe(handle string, sender subscription.Sender, req request.Subscribe) error
	Unsubscribe(req request.Unsubscribe) error
	Publish(req request.Publish) error
	Teardown(handle string)
}
