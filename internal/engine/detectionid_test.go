package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/model"
)

func TestGenerateDetectionIDFormat(t *testing.T) {
	tests := []struct {
		vruType model.VRUType
		frame   int
		prefix  string
	}{
		{model.VRUTypePedestrian, 0, "ped-0-"},
		{model.VRUTypeCyclist, 42, "cyc-42-"},
		{model.VRUTypeMotorcyclist, 7, "mot-7-"},
		{model.VRUTypeWheelchairUser, 1200, "wcu-1200-"},
		{model.VRUTypeScooterRider, 3, "sct-3-"},
	}

	for _, tt := range tests {
		t.Run(string(tt.vruType), func(t *testing.T) {
			id := GenerateDetectionID(tt.vruType, tt.frame)
			assert.True(t, strings.HasPrefix(id, tt.prefix), "id %q should start with %q", id, tt.prefix)
			suffix := strings.TrimPrefix(id, tt.prefix)
			assert.Len(t, suffix, 12)
		})
	}
}

func TestGenerateDetectionIDUniqueness(t *testing.T) {
	// Same type and frame on every call, so only the random suffix keeps
	// the identifiers apart.
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := GenerateDetectionID(model.VRUTypePedestrian, 100)
		_, dup := seen[id]
		require.False(t, dup, "collision after %d ids: %s", i, id)
		seen[id] = struct{}{}
	}
}

func TestGenerateDetectionIDUnknownTypeFallsBack(t *testing.T) {
	id := GenerateDetectionID(model.VRUType("unknown"), 5)
	assert.True(t, strings.HasPrefix(id, fmt.Sprintf("det-%d-", 5)))
}
