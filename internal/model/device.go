package model

type DeviceID string

const (
	LivingRoomLight  DeviceID = "living_room_light"
	BluetoothSpeaker DeviceID = "bluetooth_speaker"
	CoffeeMaker      DeviceID = "coffee_maker"
)

type Device struct {
	ID   DeviceID `json:"id"`
	Name string   `json:"name"`
}

// Devices is the static registry of synchronized devices, in display order.
var Devices = []Device{
	{ID: LivingRoomLight, Name: "Living room light"},
	{ID: BluetoothSpeaker, Name: "Bluetooth speaker"},
	{ID: CoffeeMaker, Name: "Coffee maker"},
}

// LookupDevice returns the registry entry for id.
func LookupDevice(id DeviceID) (Device, bool) {
	for _, d := range Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

type DeviceState struct {
	DeviceID DeviceID `json:"device_id"`
	Name     string   `json:"name"`
	IsOn     bool     `json:"is_on"`
}
