package repository

// MessageBus publishes serialized events to interested consumers.
type MessageBus interface {
	Publish(topic string, data []byte) error
}
