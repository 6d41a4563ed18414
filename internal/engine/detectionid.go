package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"annotation-service/internal/model"
)

// GenerateDetectionID produces a human-inspectable identifier of the form
// {type-prefix}-{frameNumber}-{randomSuffix}. The suffix carries enough
// entropy that collisions within a session are practically impossible; the
// identifier is assigned once at creation and never regenerated.
func GenerateDetectionID(vruType model.VRUType, frameNumber int) string {
	suffix := make([]byte, 6)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s-%d-%s", vruType.DetectionIDPrefix(), frameNumber, hex.EncodeToString(suffix))
}
