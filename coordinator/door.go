package coordinator

import (
	"context"
)

// OpenDoor fires the door identified by doorKey on a device from the published
// snapshot, then runs one extra refresh cycle. Client errors are returned as-is;
// the follow-up refresh is best-effort and never fails the door action.
func (c *Coordinator) OpenDoor(ctx context.Context, deviceID, doorKey string) (err error) {
	c.doorLock.Lock()
	defer c.doorLock.Unlock()
	defer func() { c.metrics.ObserveDoorOpen(err) }()

	device, ok := c.GetDeviceData(deviceID)
	if !ok {
		return &NotFoundError{Kind: KindDevice, ID: deviceID}
	}
	door, ok := device.Pairing.AccessDoorMap[doorKey]
	if !ok {
		return &NotFoundError{Kind: KindDoor, ID: doorKey, DeviceID: deviceID}
	}
	block, subblock, number, ok := door.AccessID.Triple()
	if !ok {
		return &InvalidConfigError{
			DeviceID: deviceID,
			DoorKey:  doorKey,
			Reason:   "access id requires block, subblock and number",
		}
	}

	logger := c.logger.With().Str("device_id", deviceID).Str("door", doorKey).Logger()
	result, err := c.client.OpenDoor(ctx, deviceID, block, subblock, number)
	if err != nil {
		logger.Error().Err(err).Msg("error opening door")
		return err
	}
	logger.Info().Str("result", result).Msg("door opened")

	// An in-flight cycle may have listed devices before the door moved.
	c.cycles.Forget(refreshKey)
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		logger.Warn().Err(refreshErr).Msg("refresh after door open failed")
	}
	return nil
}
