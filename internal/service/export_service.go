package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/model"
	"annotation-service/internal/repository"
)

type ExportFormat string

const (
	ExportFormatJSON        ExportFormat = "json"
	ExportFormatCOCO        ExportFormat = "coco"
	ExportFormatYOLO        ExportFormat = "yolo"
	ExportFormatVOC         ExportFormat = "voc"
	ExportFormatLabelStudio ExportFormat = "labelstudio"
	ExportFormatCSV         ExportFormat = "csv"
)

// Frame dimensions assumed when the video reports none; YOLO and
// Label-Studio need them for normalized coordinates.
const (
	fallbackFrameWidth  = 1920
	fallbackFrameHeight = 1080
)

type ExportService struct {
	annotationRepo *repository.AnnotationRepository
	videoRepo      *repository.VideoRepository
}

func NewExportService(annotationRepo *repository.AnnotationRepository, videoRepo *repository.VideoRepository) *ExportService {
	return &ExportService{
		annotationRepo: annotationRepo,
		videoRepo:      videoRepo,
	}
}

type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Export serializes a video's stored annotations in the requested format.
func (s *ExportService) Export(ctx context.Context, principal model.Principal, videoID string, format ExportFormat) (*ExportResult, error) {
	id, err := uuid.Parse(videoID)
	if err != nil {
		return nil, ErrInvalidInput
	}
	video, err := s.videoRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	annotations, err := s.annotationRepo.ListByVideo(ctx, video.ID)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatJSON:
		return s.exportJSON(video, annotations)
	case ExportFormatCOCO:
		return s.exportCOCO(video, annotations)
	case ExportFormatYOLO:
		return s.exportYOLO(video, annotations)
	case ExportFormatVOC:
		return s.exportVOC(video, annotations)
	case ExportFormatLabelStudio:
		return s.exportLabelStudio(video, annotations)
	case ExportFormatCSV:
		return s.exportCSV(video, annotations)
	default:
		return nil, ErrInvalidInput
	}
}

func (s *ExportService) exportJSON(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	payload := map[string]interface{}{
		"video_id":    video.ID,
		"video_name":  video.Name,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"annotations": annotations,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Data:        data,
		ContentType: "application/json",
		Filename:    video.Name + "_annotations.json",
	}, nil
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type cocoAnnotation struct {
	ID         int       `json:"id"`
	ImageID    int       `json:"image_id"`
	CategoryID int       `json:"category_id"`
	BBox       []float64 `json:"bbox"`
	Area       float64   `json:"area"`
	IsCrowd    int       `json:"iscrowd"`
	Score      float64   `json:"score"`
}

func (s *ExportService) exportCOCO(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	width, height := frameDimensions(video)

	categoryIDs := make(map[model.VRUType]int)
	var categories []cocoCategory
	for i, vruType := range model.AllVRUTypes() {
		categoryIDs[vruType] = i + 1
		categories = append(categories, cocoCategory{ID: i + 1, Name: string(vruType)})
	}

	// One COCO image per annotated frame.
	frames := distinctFrames(annotations)
	imageIDs := make(map[int]int, len(frames))
	images := make([]cocoImage, 0, len(frames))
	for i, frame := range frames {
		imageIDs[frame] = i + 1
		images = append(images, cocoImage{
			ID:       i + 1,
			FileName: fmt.Sprintf("%s_frame_%06d.jpg", video.Name, frame),
			Width:    width,
			Height:   height,
		})
	}

	cocoAnnotations := make([]cocoAnnotation, 0, len(annotations))
	for i, a := range annotations {
		box := a.BoundingBox
		cocoAnnotations = append(cocoAnnotations, cocoAnnotation{
			ID:         i + 1,
			ImageID:    imageIDs[a.FrameNumber],
			CategoryID: categoryIDs[a.VRUType],
			BBox:       []float64{box.X, box.Y, box.Width, box.Height},
			Area:       box.Width * box.Height,
			Score:      box.Confidence,
		})
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"images":      images,
		"categories":  categories,
		"annotations": cocoAnnotations,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Data:        data,
		ContentType: "application/json",
		Filename:    video.Name + "_coco.json",
	}, nil
}

func (s *ExportService) exportYOLO(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	width, height := frameDimensions(video)

	classIndexes := make(map[model.VRUType]int)
	for i, vruType := range model.AllVRUTypes() {
		classIndexes[vruType] = i
	}

	// One line per box: frame, class index, then the usual normalized
	// center/size tuple.
	var buf bytes.Buffer
	for _, a := range annotations {
		box := a.BoundingBox
		cx := (box.X + box.Width/2) / float64(width)
		cy := (box.Y + box.Height/2) / float64(height)
		w := box.Width / float64(width)
		h := box.Height / float64(height)
		fmt.Fprintf(&buf, "%d %d %.6f %.6f %.6f %.6f\n", a.FrameNumber, classIndexes[a.VRUType], cx, cy, w, h)
	}

	return &ExportResult{
		Data:        buf.Bytes(),
		ContentType: "text/plain",
		Filename:    video.Name + "_yolo.txt",
	}, nil
}

type vocBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

type vocObject struct {
	Name      string  `xml:"name"`
	Occluded  int     `xml:"occluded"`
	Truncated int     `xml:"truncated"`
	Difficult int     `xml:"difficult"`
	BndBox    vocBox  `xml:"bndbox"`
	Score     float64 `xml:"score"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocFrame struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

type vocDocument struct {
	XMLName xml.Name   `xml:"annotations"`
	Frames  []vocFrame `xml:"annotation"`
}

func (s *ExportService) exportVOC(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	width, height := frameDimensions(video)

	byFrame := make(map[int][]model.Annotation)
	for _, a := range annotations {
		byFrame[a.FrameNumber] = append(byFrame[a.FrameNumber], a)
	}

	doc := vocDocument{}
	for _, frame := range distinctFrames(annotations) {
		vf := vocFrame{
			Folder:   video.Name,
			Filename: fmt.Sprintf("%s_frame_%06d.jpg", video.Name, frame),
			Size:     vocSize{Width: width, Height: height, Depth: 3},
		}
		for _, a := range byFrame[frame] {
			box := a.BoundingBox
			vf.Objects = append(vf.Objects, vocObject{
				Name:      string(a.VRUType),
				Occluded:  boolToInt(a.Occluded),
				Truncated: boolToInt(a.Truncated),
				Difficult: boolToInt(a.Difficult),
				BndBox: vocBox{
					XMin: int(box.X),
					YMin: int(box.Y),
					XMax: int(box.X + box.Width),
					YMax: int(box.Y + box.Height),
				},
				Score: box.Confidence,
			})
		}
		doc.Frames = append(doc.Frames, vf)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	data = append([]byte(xml.Header), data...)
	return &ExportResult{
		Data:        data,
		ContentType: "application/xml",
		Filename:    video.Name + "_voc.xml",
	}, nil
}

func (s *ExportService) exportLabelStudio(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	width, height := frameDimensions(video)

	results := make([]map[string]interface{}, 0, len(annotations))
	for _, a := range annotations {
		box := a.BoundingBox
		results = append(results, map[string]interface{}{
			"id":   a.DetectionID,
			"type": "rectanglelabels",
			"value": map[string]interface{}{
				"x":               box.X / float64(width) * 100,
				"y":               box.Y / float64(height) * 100,
				"width":           box.Width / float64(width) * 100,
				"height":          box.Height / float64(height) * 100,
				"rectanglelabels": []string{string(a.VRUType)},
			},
			"meta": map[string]interface{}{
				"frame":     a.FrameNumber,
				"timestamp": a.Timestamp,
				"validated": a.Validated,
			},
		})
	}

	task := []map[string]interface{}{{
		"id":   video.ID,
		"data": map[string]interface{}{"video": video.StoragePath, "name": video.Name},
		"annotations": []map[string]interface{}{{
			"result": results,
		}},
	}}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Data:        data,
		ContentType: "application/json",
		Filename:    video.Name + "_labelstudio.json",
	}, nil
}

func (s *ExportService) exportCSV(video *model.Video, annotations []model.Annotation) (*ExportResult, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"detection_id", "frame_number", "timestamp", "vru_type",
		"x", "y", "width", "height", "confidence", "label",
		"occluded", "truncated", "difficult", "validated",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, a := range annotations {
		box := a.BoundingBox
		record := []string{
			a.DetectionID,
			strconv.Itoa(a.FrameNumber),
			strconv.FormatFloat(a.Timestamp, 'f', -1, 64),
			string(a.VRUType),
			strconv.FormatFloat(box.X, 'f', -1, 64),
			strconv.FormatFloat(box.Y, 'f', -1, 64),
			strconv.FormatFloat(box.Width, 'f', -1, 64),
			strconv.FormatFloat(box.Height, 'f', -1, 64),
			strconv.FormatFloat(box.Confidence, 'f', -1, 64),
			box.Label,
			strconv.FormatBool(a.Occluded),
			strconv.FormatBool(a.Truncated),
			strconv.FormatBool(a.Difficult),
			strconv.FormatBool(a.Validated),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &ExportResult{
		Data:        buf.Bytes(),
		ContentType: "text/csv",
		Filename:    video.Name + "_annotations.csv",
	}, nil
}

func frameDimensions(video *model.Video) (int, int) {
	width, height := video.Width, video.Height
	if width <= 0 {
		width = fallbackFrameWidth
	}
	if height <= 0 {
		height = fallbackFrameHeight
	}
	return width, height
}

func distinctFrames(annotations []model.Annotation) []int {
	seen := make(map[int]struct{})
	var frames []int
	for _, a := range annotations {
		if _, ok := seen[a.FrameNumber]; !ok {
			seen[a.FrameNumber] = struct{}{}
			frames = append(frames, a.FrameNumber)
		}
	}
	sort.Ints(frames)
	return frames
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
