package service

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/model"
)

func exportFixture() (*model.Video, []model.Annotation) {
	video := &model.Video{
		ID:          uuid.New(),
		Name:        "crosswalk_cam",
		Width:       1280,
		Height:      720,
		StoragePath: "videos/crosswalk_cam.mp4",
	}
	annotations := []model.Annotation{
		{
			ID:          uuid.New(),
			VideoID:     video.ID,
			DetectionID: "ped-3-aabbccddeeff",
			FrameNumber: 3,
			Timestamp:   0.1,
			VRUType:     model.VRUTypePedestrian,
			BoundingBox: model.BoundingBox{X: 100, Y: 100, Width: 50, Height: 100, Confidence: 1.0, Label: "pedestrian"},
			Validated:   true,
		},
		{
			ID:          uuid.New(),
			VideoID:     video.ID,
			DetectionID: "cyc-3-001122334455",
			FrameNumber: 3,
			Timestamp:   0.1,
			VRUType:     model.VRUTypeCyclist,
			BoundingBox: model.BoundingBox{X: 640, Y: 360, Width: 64, Height: 72, Confidence: 0.82, Label: "cyclist"},
			Occluded:    true,
		},
		{
			ID:          uuid.New(),
			VideoID:     video.ID,
			DetectionID: "sct-10-ffeeddccbbaa",
			FrameNumber: 10,
			Timestamp:   0.333,
			VRUType:     model.VRUTypeScooterRider,
			BoundingBox: model.BoundingBox{X: 20, Y: 40, Width: 30, Height: 90, Confidence: 0.5, Label: "scooter_rider"},
		},
	}
	return video, annotations
}

func TestExportJSONIncludesAllAnnotations(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportJSON(video, annotations)
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)
	assert.Equal(t, "crosswalk_cam_annotations.json", result.Filename)

	var payload struct {
		VideoName   string             `json:"video_name"`
		Annotations []model.Annotation `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, "crosswalk_cam", payload.VideoName)
	require.Len(t, payload.Annotations, 3)
	assert.Equal(t, "ped-3-aabbccddeeff", payload.Annotations[0].DetectionID)
}

func TestExportCOCOGroupsByFrame(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportCOCO(video, annotations)
	require.NoError(t, err)

	var doc struct {
		Images      []cocoImage      `json:"images"`
		Categories  []cocoCategory   `json:"categories"`
		Annotations []cocoAnnotation `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &doc))

	// Frames 3 and 10 become two images with the video's dimensions.
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "crosswalk_cam_frame_000003.jpg", doc.Images[0].FileName)
	assert.Equal(t, 1280, doc.Images[0].Width)
	assert.Equal(t, 720, doc.Images[0].Height)

	require.Len(t, doc.Categories, 5)
	assert.Equal(t, "pedestrian", doc.Categories[0].Name)

	require.Len(t, doc.Annotations, 3)
	first := doc.Annotations[0]
	assert.Equal(t, 1, first.ImageID)
	assert.Equal(t, 1, first.CategoryID)
	assert.Equal(t, []float64{100, 100, 50, 100}, first.BBox)
	assert.InDelta(t, 5000.0, first.Area, 1e-9)

	// The scooter rider on frame 10 maps to the second image.
	assert.Equal(t, 2, doc.Annotations[2].ImageID)
}

func TestExportYOLONormalizesCoordinates(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportYOLO(video, annotations)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)

	// 100+50/2=125 over 1280, 100+100/2=150 over 720.
	assert.Equal(t, "3 0 0.097656 0.208333 0.039062 0.138889", lines[0])
	// Class index 1 is cyclist.
	assert.True(t, strings.HasPrefix(lines[1], "3 1 "))
	// Class index 4 is scooter rider.
	assert.True(t, strings.HasPrefix(lines[2], "10 4 "))
}

func TestExportVOCFlagsAndGeometry(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportVOC(video, annotations)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(result.Data), xml.Header))

	var doc vocDocument
	require.NoError(t, xml.Unmarshal(result.Data, &doc))

	require.Len(t, doc.Frames, 2)
	frame := doc.Frames[0]
	assert.Equal(t, "crosswalk_cam_frame_000003.jpg", frame.Filename)
	require.Len(t, frame.Objects, 2)

	ped := frame.Objects[0]
	assert.Equal(t, "pedestrian", ped.Name)
	assert.Equal(t, vocBox{XMin: 100, YMin: 100, XMax: 150, YMax: 200}, ped.BndBox)
	assert.Equal(t, 0, ped.Occluded)

	cyc := frame.Objects[1]
	assert.Equal(t, 1, cyc.Occluded)
}

func TestExportLabelStudioUsesPercentCoordinates(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportLabelStudio(video, annotations)
	require.NoError(t, err)

	var tasks []struct {
		Annotations []struct {
			Result []struct {
				ID    string `json:"id"`
				Value struct {
					X               float64  `json:"x"`
					Width           float64  `json:"width"`
					RectangleLabels []string `json:"rectanglelabels"`
				} `json:"value"`
				Meta struct {
					Frame     int  `json:"frame"`
					Validated bool `json:"validated"`
				} `json:"meta"`
			} `json:"result"`
		} `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &tasks))
	require.Len(t, tasks, 1)

	results := tasks[0].Annotations[0].Result
	require.Len(t, results, 3)
	assert.Equal(t, "ped-3-aabbccddeeff", results[0].ID)
	assert.InDelta(t, 100.0/1280*100, results[0].Value.X, 1e-9)
	assert.InDelta(t, 50.0/1280*100, results[0].Value.Width, 1e-9)
	assert.Equal(t, []string{"pedestrian"}, results[0].Value.RectangleLabels)
	assert.Equal(t, 3, results[0].Meta.Frame)
	assert.True(t, results[0].Meta.Validated)
}

func TestExportCSVRows(t *testing.T) {
	s := &ExportService{}
	video, annotations := exportFixture()

	result, err := s.exportCSV(video, annotations)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(result.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "detection_id", records[0][0])
	assert.Equal(t, "validated", records[0][13])

	assert.Equal(t, "ped-3-aabbccddeeff", records[1][0])
	assert.Equal(t, "3", records[1][1])
	assert.Equal(t, "pedestrian", records[1][3])
	assert.Equal(t, "true", records[1][13])
	assert.Equal(t, "true", records[2][10]) // occluded cyclist
}

func TestFrameDimensionsFallback(t *testing.T) {
	width, height := frameDimensions(&model.Video{})
	assert.Equal(t, fallbackFrameWidth, width)
	assert.Equal(t, fallbackFrameHeight, height)

	width, height = frameDimensions(&model.Video{Width: 640, Height: 480})
	assert.Equal(t, 640, width)
	assert.Equal(t, 480, height)
}

func TestDistinctFramesSortedUnique(t *testing.T) {
	frames := distinctFrames([]model.Annotation{
		{FrameNumber: 10},
		{FrameNumber: 3},
		{FrameNumber: 10},
		{FrameNumber: 1},
	})
	assert.Equal(t, []int{1, 3, 10}, frames)
}
