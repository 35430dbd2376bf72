// Package device defines the capability contracts shared by every sensor, actuator,
// communicator and storage backend, plus the Reading value they exchange.
// It has no hardware or network dependencies.
package device

import "context"

// Sensor produces one Reading per call. Implementations may block on hardware.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
}

// Actuator performs a physical action driven by a Reading.
// Actuators must reject reading kinds they cannot interpret with ErrUnsupported.
type Actuator interface {
	Execute(ctx context.Context, command Reading) error
}

// Communicator forwards readings to an outside channel.
// Send-only channels return ErrUnsupported from Receive.
type Communicator interface {
	Send(ctx context.Context, value Reading) (Response, error)
	Receive(ctx context.Context) (Response, error)
}

// Storage persists readings in save order.
type Storage interface {
	Save(value Reading) error
	List() ([]Reading, error)
	Clear() error
}

// Response is what a communicator reports back for a send or a receive.
type Response struct {
	Channel string // topic or stream the message went to / came from
	Payload []byte
}

// SensorFunc adapts a function to the Sensor interface.
type SensorFunc func(ctx context.Context) (Reading, error)

// Read calls f(ctx).
func (f SensorFunc) Read(ctx context.Context) (Reading, error) {
	return f(ctx)
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, command Reading) error

// Execute calls f(ctx, command).
func (f ActuatorFunc) Execute(ctx context.Context, command Reading) error {
	return f(ctx, command)
}
