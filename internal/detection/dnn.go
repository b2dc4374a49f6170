package detection

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"safespace/internal/framestore"
	"safespace/internal/logging"
)

const (
	blobScale = 1.0 / 127.5
	blobSize  = 300
)

// DNNBackend runs SSD-style detectors through OpenCV's dnn module. It
// tries the CUDA backend once at construction and falls back to CPU when
// the build or the host has no usable GPU.
type DNNBackend struct {
	logger      *slog.Logger
	accelerated bool

	mu sync.Mutex
}

// NewDNNBackend probes for GPU acceleration and reports the outcome.
func NewDNNBackend(logger *slog.Logger, preferGPU bool) *DNNBackend {
	b := &DNNBackend{
		logger:      logging.NewComponentLogger(logger, "dnn-backend"),
		accelerated: preferGPU,
	}
	if preferGPU {
		b.logger.Info("inference device preference", logging.String("device", "cuda"))
	} else {
		b.logger.Info("inference device preference", logging.String("device", "cpu"))
	}
	return b
}

// Accelerated reports whether models run on the GPU.
func (b *DNNBackend) Accelerated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accelerated
}

type dnnHandle struct {
	net gocv.Net

	mu     sync.Mutex
	closed bool
}

func (h *dnnHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.net.Close()
}

// Load reads the network weights and topology from disk. Missing
// artifacts fail fast here rather than at the first inference.
func (b *DNNBackend) Load(modelPath, configPath string) (Handle, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model weights %q: %w", modelPath, err)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("model topology %q: %w", configPath, err)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("read network from %q: empty net", modelPath)
	}

	b.mu.Lock()
	wantGPU := b.accelerated
	b.mu.Unlock()
	if wantGPU {
		if err := net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			b.logger.Warn("cuda backend unavailable, using cpu", logging.Error(err))
			b.mu.Lock()
			b.accelerated = false
			b.mu.Unlock()
		} else if err := net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			b.logger.Warn("cuda target unavailable, using cpu", logging.Error(err))
			b.mu.Lock()
			b.accelerated = false
			b.mu.Unlock()
		}
	}

	return &dnnHandle{net: net}, nil
}

// Infer converts the frame into a network blob, runs a forward pass, and
// decodes the 7-float detection rows into pixel-space boxes. Detections
// below the confidence threshold are dropped.
func (b *DNNBackend) Infer(handle Handle, frame framestore.Frame, confidence float64) (Detection, error) {
	h, ok := handle.(*dnnHandle)
	if !ok {
		return Detection{}, fmt.Errorf("foreign handle type %T", handle)
	}
	if frame.Empty() {
		return Detection{}, ErrNoFrame
	}

	mat, err := frameToMat(frame)
	if err != nil {
		return Detection{}, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, blobScale, image.Pt(blobSize, blobSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Detection{}, fmt.Errorf("%w: handle closed", ErrUnknownModel)
	}
	h.net.SetInput(blob, "")
	output := h.net.Forward("")
	h.mu.Unlock()
	defer output.Close()

	return decodeDetections(output, frame.Width, frame.Height, confidence), nil
}

// decodeDetections walks the SSD output layout: rows of seven floats
// where [1] is the class id, [2] the confidence, and [3:7] the box in
// normalized coordinates.
func decodeDetections(output gocv.Mat, width, height int, confidence float64) Detection {
	var det Detection
	rows := output.Total() / 7
	for i := 0; i < rows; i++ {
		base := i * 7
		score := float64(output.GetFloatAt(0, base+2))
		if score < confidence {
			continue
		}
		classID := int(output.GetFloatAt(0, base+1))
		left := float64(output.GetFloatAt(0, base+3)) * float64(width)
		top := float64(output.GetFloatAt(0, base+4)) * float64(height)
		right := float64(output.GetFloatAt(0, base+5)) * float64(width)
		bottom := float64(output.GetFloatAt(0, base+6)) * float64(height)

		det.Boxes = append(det.Boxes, Box{
			X:      int(left),
			Y:      int(top),
			Width:  int(right - left),
			Height: int(bottom - top),
		})
		det.Confidences = append(det.Confidences, score)
		det.ClassIDs = append(det.ClassIDs, classID)
	}
	return det
}

func frameToMat(frame framestore.Frame) (gocv.Mat, error) {
	matType := gocv.MatTypeCV8UC3
	if frame.Channels == 1 {
		matType = gocv.MatTypeCV8UC1
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, matType, frame.Pixels)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("frame to mat: %w", err)
	}
	return mat, nil
}
