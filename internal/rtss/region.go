package rtss

// Region is a read-only view of a named shared memory mapping.
// Bytes is valid until Close.
type Region interface {
	Name() string
	Bytes() []byte
	Close() error
}

// Opener maps a named region. OpenRegion is the platform implementation.
type Opener func(name string) (Region, error)
