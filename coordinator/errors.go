package coordinator

import (
	"fmt"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

// Kinds of entity a NotFoundError refers to.
const (
	KindDevice = "device"
	KindDoor   = "door"
)

// NotFoundError means the device or door is not in the published snapshot.
type NotFoundError struct {
	Kind     string
	ID       string
	DeviceID string
}

func (e *NotFoundError) Error() string {
	if e.Kind == KindDoor {
		return fmt.Sprintf("[coordinator OpenDoor] door %q not found on device %q", e.ID, e.DeviceID)
	}
	return fmt.Sprintf("[coordinator OpenDoor] %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ferrors.ErrNotFound }

// InvalidConfigError means the door entry cannot be addressed, typically because
// its access triple is incomplete.
type InvalidConfigError struct {
	DeviceID string
	DoorKey  string
	Reason   string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("[coordinator OpenDoor] door %q on device %q: %s", e.DoorKey, e.DeviceID, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool { return target == ferrors.ErrInvalidConfig }
