package utils

import (
	"strings"

	"annotation-service/internal/model"
)

// Aliases seen in model backends and import files for each VRU class.
var vruAliases = map[string]model.VRUType{
	"pedestrian":      model.VRUTypePedestrian,
	"person":          model.VRUTypePedestrian,
	"cyclist":         model.VRUTypeCyclist,
	"bicycle":         model.VRUTypeCyclist,
	"bike":            model.VRUTypeCyclist,
	"motorcyclist":    model.VRUTypeMotorcyclist,
	"motorcycle":      model.VRUTypeMotorcyclist,
	"motorbike":       model.VRUTypeMotorcyclist,
	"wheelchair_user": model.VRUTypeWheelchairUser,
	"wheelchair":      model.VRUTypeWheelchairUser,
	"scooter_rider":   model.VRUTypeScooterRider,
	"scooter":         model.VRUTypeScooterRider,
	"e_scooter":       model.VRUTypeScooterRider,
}

// NormalizeVRUType maps a loose class label onto the closed VRU
// enumeration. Spaces and hyphens are treated as underscores and case is
// ignored.
func NormalizeVRUType(raw string) (model.VRUType, bool) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	vruType, ok := vruAliases[normalized]
	return vruType, ok
}
