package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"safespace/internal/config"
	"safespace/internal/framestore"
)

// NewSource builds the configured acquisition backend: a live capture
// device or a video file.
func NewSource(cfg config.Camera) Source {
	if cfg.Source == "file" {
		return &FileSource{path: cfg.VideoPath}
	}
	return &LiveSource{index: cfg.DeviceIndex, width: cfg.Width, height: cfg.Height}
}

// LiveSource reads frames from a capture device via OpenCV.
type LiveSource struct {
	index  int
	width  int
	height int
	cap    *gocv.VideoCapture
}

func (s *LiveSource) Open() error {
	cap, err := gocv.OpenVideoCapture(s.index)
	if err != nil {
		return fmt.Errorf("open capture device %d: %w", s.index, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return fmt.Errorf("capture device %d did not open", s.index)
	}
	if s.width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
	}
	if s.height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	}
	s.cap = cap
	return nil
}

func (s *LiveSource) ReadFrame() (framestore.Frame, error) {
	if s.cap == nil {
		return framestore.Frame{}, errors.New("capture device not open")
	}
	mat := gocv.NewMat()
	defer mat.Close()
	if ok := s.cap.Read(&mat); !ok || mat.Empty() {
		return framestore.Frame{}, ErrEmptyRead
	}
	return matToFrame(mat), nil
}

func (s *LiveSource) Close() error {
	if s.cap == nil {
		return nil
	}
	err := s.cap.Close()
	s.cap = nil
	return err
}

// FileSource plays a video file back frame by frame. Read returns io.EOF
// at the end; Rewind restarts playback for loop mode.
type FileSource struct {
	path string
	cap  *gocv.VideoCapture
}

func (s *FileSource) Open() error {
	cap, err := gocv.OpenVideoCapture(s.path)
	if err != nil {
		return fmt.Errorf("open video file %q: %w", s.path, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return fmt.Errorf("video file %q did not open", s.path)
	}
	s.cap = cap
	return nil
}

func (s *FileSource) ReadFrame() (framestore.Frame, error) {
	if s.cap == nil {
		return framestore.Frame{}, errors.New("video file not open")
	}
	mat := gocv.NewMat()
	defer mat.Close()
	if ok := s.cap.Read(&mat); !ok || mat.Empty() {
		return framestore.Frame{}, io.EOF
	}
	return matToFrame(mat), nil
}

func (s *FileSource) Rewind() error {
	if s.cap == nil {
		return errors.New("video file not open")
	}
	s.cap.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

func (s *FileSource) Close() error {
	if s.cap == nil {
		return nil
	}
	err := s.cap.Close()
	s.cap = nil
	return err
}

func matToFrame(mat gocv.Mat) framestore.Frame {
	return framestore.Frame{
		Pixels:     mat.ToBytes(),
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		Channels:   mat.Channels(),
		CapturedAt: time.Now(),
	}
}

// SaveFrame encodes a frame to disk (format chosen by the extension).
// Used for accident snapshots attached to reports.
func SaveFrame(frame framestore.Frame, path string) error {
	if frame.Empty() {
		return errors.New("no frame to save")
	}
	if frame.Channels != 1 && frame.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", frame.Channels)
	}
	matType := gocv.MatTypeCV8UC3
	if frame.Channels == 1 {
		matType = gocv.MatTypeCV8UC1
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, matType, frame.Pixels)
	if err != nil {
		return fmt.Errorf("rebuild frame matrix: %w", err)
	}
	defer mat.Close()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create media directory: %w", err)
		}
	}
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("write frame to %q", path)
	}
	return nil
}
