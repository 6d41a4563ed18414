package model

type VRUType string

const (
	VRUTypePedestrian     VRUType = "pedestrian"
	VRUTypeCyclist        VRUType = "cyclist"
	VRUTypeMotorcyclist   VRUType = "motorcyclist"
	VRUTypeWheelchairUser VRUType = "wheelchair_user"
	VRUTypeScooterRider   VRUType = "scooter_rider"
)

// detectionIDPrefixes maps each VRU type to the short prefix embedded in
// client-generated detection identifiers.
var detectionIDPrefixes = map[VRUType]string{
	VRUTypePedestrian:     "ped",
	VRUTypeCyclist:        "cyc",
	VRUTypeMotorcyclist:   "mot",
	VRUTypeWheelchairUser: "wcu",
	VRUTypeScooterRider:   "sct",
}

func AllVRUTypes() []VRUType {
	return []VRUType{
		VRUTypePedestrian,
		VRUTypeCyclist,
		VRUTypeMotorcyclist,
		VRUTypeWheelchairUser,
		VRUTypeScooterRider,
	}
}

func (t VRUType) Valid() bool {
	_, ok := detectionIDPrefixes[t]
	return ok
}

// DetectionIDPrefix returns the identifier prefix for the type, or "det"
// for values outside the closed enumeration.
func (t VRUType) DetectionIDPrefix() string {
	if prefix, ok := detectionIDPrefixes[t]; ok {
		return prefix
	}
	return "det"
}
