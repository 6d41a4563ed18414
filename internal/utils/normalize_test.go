package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"annotation-service/internal/model"
)

func TestNormalizeVRUType(t *testing.T) {
	tests := []struct {
		raw  string
		want model.VRUType
		ok   bool
	}{
		{"pedestrian", model.VRUTypePedestrian, true},
		{"Person", model.VRUTypePedestrian, true},
		{" bicycle ", model.VRUTypeCyclist, true},
		{"Wheelchair User", model.VRUTypeWheelchairUser, true},
		{"scooter-rider", model.VRUTypeScooterRider, true},
		{"E-Scooter", model.VRUTypeScooterRider, true},
		{"MOTORBIKE", model.VRUTypeMotorcyclist, true},
		{"car", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeVRUType(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
