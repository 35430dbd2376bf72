package device

import "errors"

// Error kinds. Device implementations wrap one of these with fmt.Errorf("...: %w")
// so the loop and tests can classify failures with errors.Is.
var (
	// ErrTimeout: an expected pin transition or response did not arrive in time.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidData: checksum mismatch, unparseable payload or value out of physical range.
	ErrInvalidData = errors.New("invalid data")

	// ErrInitialization: the pin, device path or connection could not be acquired.
	ErrInitialization = errors.New("initialization failed")

	// ErrIO: the underlying primitive reported a low-level access failure.
	ErrIO = errors.New("io error")

	// ErrSend: the communicator failed to deliver a value.
	ErrSend = errors.New("send failed")

	// ErrExecute: an actuator failed to carry out a command.
	ErrExecute = errors.New("execute failed")

	// ErrSave: a storage backend failed to persist a value.
	ErrSave = errors.New("save failed")

	// ErrUnsupported: the operation or reading kind is not supported by this device.
	ErrUnsupported = errors.New("unsupported")
)
