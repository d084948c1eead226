package cloudfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/jrsteele09/go-fermax-cloud/coordinator"
	"github.com/jrsteele09/go-fermax-cloud/internal/utils"
)

var _ coordinator.SessionClient = (*FakeClient)(nil)

// OpenDoorCall records one OpenDoor invocation.
type OpenDoorCall struct {
	DeviceID string
	Block    int
	Subblock int
	Number   int
}

// FakeClient is an in-memory coordinator.SessionClient.
type FakeClient struct {
	lock sync.Mutex

	pairings    []cloud.Pairing
	pairingsErr error
	devices     map[string]cloud.DeviceInfo
	deviceErrs  map[string]error
	services    map[string][]string
	openDoorErr error

	pairingCalls  int
	deviceCalls   map[string]int
	openDoorCalls []OpenDoorCall

	// BeforeGetPairings, when set, runs at the start of every GetPairings call.
	BeforeGetPairings func()
	// BeforeGetDevice, when set, runs at the start of every GetDevice call.
	BeforeGetDevice func(deviceID string)
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		devices:     make(map[string]cloud.DeviceInfo),
		deviceErrs:  make(map[string]error),
		services:    make(map[string][]string),
		deviceCalls: make(map[string]int),
	}
}

// SetPairings replaces the pairing list. A non-nil err makes GetPairings fail.
func (f *FakeClient) SetPairings(pairings []cloud.Pairing, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pairings = pairings
	f.pairingsErr = err
}

func (f *FakeClient) SetDevice(deviceID string, info cloud.DeviceInfo) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.devices[deviceID] = info
	delete(f.deviceErrs, deviceID)
}

// FailDevice makes GetDevice fail for deviceID until SetDevice is called again.
func (f *FakeClient) FailDevice(deviceID string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.deviceErrs[deviceID] = err
}

// SetServices sets the capability list. Devices without one are unavailable.
func (f *FakeClient) SetServices(deviceID string, services []string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.services[deviceID] = services
}

func (f *FakeClient) SetOpenDoorError(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.openDoorErr = err
}

func (f *FakeClient) GetPairings(ctx context.Context) ([]cloud.Pairing, error) {
	if f.BeforeGetPairings != nil {
		f.BeforeGetPairings()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.pairingCalls++
	if f.pairingsErr != nil {
		return nil, f.pairingsErr
	}
	return append([]cloud.Pairing(nil), f.pairings...), nil
}

func (f *FakeClient) GetDevice(ctx context.Context, deviceID string) (cloud.DeviceInfo, error) {
	if f.BeforeGetDevice != nil {
		f.BeforeGetDevice(deviceID)
	}
	if err := ctx.Err(); err != nil {
		return cloud.DeviceInfo{}, err
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.deviceCalls[deviceID]++
	if err, ok := f.deviceErrs[deviceID]; ok {
		return cloud.DeviceInfo{}, err
	}
	info, ok := f.devices[deviceID]
	if !ok {
		return cloud.DeviceInfo{}, &cloud.APIError{Op: "GetDevice", StatusCode: 404}
	}
	return info, nil
}

func (f *FakeClient) GetServices(ctx context.Context, deviceID string) cloud.Capabilities {
	f.lock.Lock()
	defer f.lock.Unlock()
	services, ok := f.services[deviceID]
	if !ok {
		return cloud.Unavailable()
	}
	return cloud.Capabilities{Services: append([]string{}, services...), Available: true}
}

func (f *FakeClient) OpenDoor(ctx context.Context, deviceID string, block, subblock, number int) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.openDoorCalls = append(f.openDoorCalls, OpenDoorCall{
		DeviceID: deviceID,
		Block:    block,
		Subblock: subblock,
		Number:   number,
	})
	if f.openDoorErr != nil {
		return "", f.openDoorErr
	}
	return "the door has been opened", nil
}

func (f *FakeClient) PairingCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.pairingCalls
}

func (f *FakeClient) DeviceCalls(deviceID string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.deviceCalls[deviceID]
}

func (f *FakeClient) OpenDoorCalls() []OpenDoorCall {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]OpenDoorCall(nil), f.openDoorCalls...)
}

// NetworkCalls is the total number of calls that would have reached the cloud.
func (f *FakeClient) NetworkCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	total := f.pairingCalls + len(f.openDoorCalls)
	for _, n := range f.deviceCalls {
		total += n
	}
	return total
}

// Door builds a visible door entry with a complete access triple.
func Door(title string, block, subblock, number int) cloud.DoorAccess {
	return cloud.DoorAccess{
		Visible:  true,
		Title:    title,
		AccessID: cloud.AccessID{Block: utils.Ptr(block), Subblock: utils.Ptr(subblock), Number: utils.Ptr(number)},
	}
}

func NewPairing(deviceID string, doors map[string]cloud.DoorAccess) cloud.Pairing {
	return cloud.Pairing{DeviceID: deviceID, Tag: deviceID, AccessDoorMap: doors}
}
