package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

const (
	pairingsPath = "/pairing/api/v4/pairings/me"
	devicePath   = "/deviceaction/api/v1/device/%s"
	servicesPath = "/services2/api/v1/services/%s?deviceType=wifi"
	userInfoPath = "/user/api/v1/users/me"
	openDoorPath = "/deviceaction/api/v1/device/%s/directed-opendoor?unitId=%s"
)

// GetPairings lists the devices paired with the account.
func (c *Client) GetPairings(ctx context.Context) (pairings []Pairing, err error) {
	const op = "GetPairings"
	defer func() { c.metrics.ObserveAPIRequest(op, err) }()

	body, err := c.call(ctx, apiCall{op: op, method: http.MethodGet, path: pairingsPath})
	if err != nil {
		c.logger.Error().Err(err).Msg("error getting pairings")
		return nil, err
	}
	if pairings, err = decode[[]Pairing](op, body); err != nil {
		return nil, err
	}
	c.logger.Debug().Int("count", len(pairings)).Msg("got pairings")
	return pairings, nil
}

// GetDevice returns the detail of one device.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (info DeviceInfo, err error) {
	const op = "GetDevice"
	defer func() { c.metrics.ObserveAPIRequest(op, err) }()

	c.logger.Debug().Str("device_id", deviceID).Msg("getting device info")
	body, err := c.call(ctx, apiCall{
		op:     op,
		method: http.MethodGet,
		path:   fmt.Sprintf(devicePath, url.PathEscape(deviceID)),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("device_id", deviceID).Msg("error getting device")
		return DeviceInfo{}, err
	}
	return decode[DeviceInfo](op, body)
}

// GetServices returns the device's capability list. Discovery is best-effort:
// every failure yields Unavailable() instead of an error.
func (c *Client) GetServices(ctx context.Context, deviceID string) Capabilities {
	const op = "GetServices"

	body, err := c.call(ctx, apiCall{
		op:     op,
		method: http.MethodGet,
		path:   fmt.Sprintf(servicesPath, url.PathEscape(deviceID)),
	})
	if err == nil {
		var services []string
		if services, err = decode[[]string](op, body); err == nil {
			c.metrics.ObserveAPIRequest(op, nil)
			if services == nil {
				services = []string{}
			}
			return Capabilities{Services: services, Available: true}
		}
	}

	c.metrics.ObserveAPIRequest(op, err)
	c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("error getting services")
	return Unavailable()
}

// GetUserInfo returns the account profile. It is mainly used to prove that a
// freshly issued token works.
func (c *Client) GetUserInfo(ctx context.Context) (user UserInfo, err error) {
	const op = "GetUserInfo"
	defer func() { c.metrics.ObserveAPIRequest(op, err) }()

	body, err := c.call(ctx, apiCall{op: op, method: http.MethodGet, path: userInfoPath})
	if err != nil {
		c.logger.Error().Err(err).Msg("error getting user info")
		return UserInfo{}, err
	}
	return decode[UserInfo](op, body)
}

type openDoorRequest struct {
	Block    int `json:"block"`
	Subblock int `json:"subblock"`
	Number   int `json:"number"`
}

// OpenDoor fires the door relay addressed by the access triple and returns the
// server's confirmation text. Failures other than *AuthError are reported as *APIError.
func (c *Client) OpenDoor(ctx context.Context, deviceID string, block, subblock, number int) (result string, err error) {
	const op = "OpenDoor"
	defer func() { c.metrics.ObserveAPIRequest(op, err) }()

	c.logger.Info().
		Str("device_id", deviceID).
		Int("block", block).
		Int("subblock", subblock).
		Int("number", number).
		Msg("opening door")

	body, err := c.call(ctx, apiCall{
		op:     op,
		method: http.MethodPost,
		path:   fmt.Sprintf(openDoorPath, url.PathEscape(deviceID), url.QueryEscape(deviceID)),
		body:   openDoorRequest{Block: block, Subblock: subblock, Number: number},
	})
	if err != nil {
		err = asOpenDoorError(err)
		c.logger.Error().Err(err).Str("device_id", deviceID).Msg("error opening door")
		return "", err
	}

	result = string(body)
	c.logger.Info().Str("device_id", deviceID).Str("result", result).Msg("door opened successfully")
	return result, nil
}

func asOpenDoorError(err error) error {
	if errors.Is(err, ferrors.ErrAuth) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return &APIError{Op: "OpenDoor", Err: err}
}
