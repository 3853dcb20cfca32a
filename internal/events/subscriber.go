package events

// Message is one event read back from the bus.
type Message struct {
	Topic string
	Data  []byte // JSON, as published
}

// Subscriber receives published events.
type Subscriber interface {
	// Subscribe delivers messages whose topic matches pattern until the
	// returned stop function is called; stop closes the channel.
	Subscribe(pattern string) (<-chan Message, func(), error)
	Close() error
}
