package cloud

import (
	"encoding/json"
	"sort"
)

// AccessID addresses one door relay. All three coordinates are required to open it.
type AccessID struct {
	Block    *int `json:"block"`
	Subblock *int `json:"subblock"`
	Number   *int `json:"number"`
}

// Triple returns the coordinates when all three are present.
func (a AccessID) Triple() (block, subblock, number int, ok bool) {
	if a.Block == nil || a.Subblock == nil || a.Number == nil {
		return 0, 0, 0, false
	}
	return *a.Block, *a.Subblock, *a.Number, true
}

type DoorAccess struct {
	Visible  bool     `json:"visible"`
	Title    string   `json:"title"`
	AccessID AccessID `json:"accessId"`
}

// Pairing is the account's association with one intercom device.
// Raw keeps the full payload for consumers that need fields not modelled here.
type Pairing struct {
	DeviceID      string                `json:"deviceId"`
	Tag           string                `json:"tag"`
	AccessDoorMap map[string]DoorAccess `json:"accessDoorMap"`
	Raw           json.RawMessage       `json:"-"`
}

func (p *Pairing) UnmarshalJSON(data []byte) error {
	type plain Pairing
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Pairing(decoded)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// VisibleDoors returns the keys of doors flagged visible, sorted.
func (p Pairing) VisibleDoors() []string {
	keys := make([]string, 0, len(p.AccessDoorMap))
	for key, door := range p.AccessDoorMap {
		if door.Visible {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// DeviceInfo is the device detail payload.
type DeviceInfo struct {
	Type            string          `json:"type"`
	Subtype         string          `json:"subtype"`
	ConnectionState string          `json:"connectionState"`
	Status          string          `json:"status"`
	WirelessSignal  *int            `json:"wirelessSignal"`
	Raw             json.RawMessage `json:"-"`
}

func (d *DeviceInfo) UnmarshalJSON(data []byte) error {
	type plain DeviceInfo
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*d = DeviceInfo(decoded)
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (d DeviceInfo) Connected() bool {
	return d.ConnectionState == "Connected"
}

func (d DeviceInfo) Activated() bool {
	return d.Status == "ACTIVATED"
}

// Model is "type (subtype)", or "Unknown" when the device reports no type.
func (d DeviceInfo) Model() string {
	if d.Type == "" {
		return "Unknown"
	}
	if d.Subtype != "" {
		return d.Type + " (" + d.Subtype + ")"
	}
	return d.Type
}

type UserInfo struct {
	Email string          `json:"email"`
	Raw   json.RawMessage `json:"-"`
}

func (u *UserInfo) UnmarshalJSON(data []byte) error {
	type plain UserInfo
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*u = UserInfo(decoded)
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Capabilities is the result of the best-effort service discovery. Available is
// false when the lookup failed; Services is then empty.
type Capabilities struct {
	Services  []string `json:"services"`
	Available bool     `json:"available"`
}

func Unavailable() Capabilities {
	return Capabilities{Services: []string{}}
}
