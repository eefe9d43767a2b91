package socket

// Socket is a message oriented connection to a single client.
type Socket interface {
	ID() string
	Read() ([]byte, error)
	Send(v any) error
	Close() error
}
