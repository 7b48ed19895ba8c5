package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/mempool"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Detector runs an ONNX model as a detection.Detector.
type Detector struct {
	config      Config
	session     *onnxruntime_go.DynamicAdvancedSession
	inputName   string
	outputNames []string
	mu          sync.Mutex
}

var _ detection.Detector = (*Detector)(nil)

// NewDetector loads the model and opens an inference session.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	if err := Initialize(config.LibraryPath, config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputName, outputNames, quantized, err := resolveNames(config)
	if err != nil {
		return nil, err
	}
	config.Quantized = config.Quantized || quantized

	session, err := createSession(config, inputName, outputNames)
	if err != nil {
		return nil, err
	}

	slog.Debug("Detector initialized",
		"model_path", config.ModelPath,
		"input", inputName,
		"outputs", outputNames,
		"quantized", config.Quantized,
		"output_kind", config.Output)

	return &Detector{
		config:      config,
		session:     session,
		inputName:   inputName,
		outputNames: outputNames,
	}, nil
}

// resolveNames fills in tensor names from the model when not configured
// and reports whether the model takes uint8 input.
func resolveNames(config Config) (string, []string, bool, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(config.ModelPath)
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return "", nil, false, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}

	inputName := config.InputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	quantized := inputs[0].DataType == onnxruntime_go.TensorElementDataTypeUint8

	outputNames := slices.Clone(config.OutputNames)
	if len(outputNames) == 0 {
		for _, o := range outputs {
			outputNames = append(outputNames, o.Name)
		}
	}
	switch config.Output {
	case OutputSSD:
		if len(outputNames) != 3 && len(outputNames) != 4 {
			return "", nil, false, fmt.Errorf("ssd model needs 3 or 4 outputs, got %d", len(outputNames))
		}
	case OutputSequence:
		outputNames = outputNames[:1]
	}
	return inputName, outputNames, quantized, nil
}

// createSession creates the ONNX session with the given configuration.
func createSession(config Config, inputName string, outputNames []string) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if err := configureSessionForGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if config.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(config.ModelPath,
		[]string{inputName}, outputNames, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.config }

// Close releases the session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Detect runs the model on input, rescaling it to the model size when
// needed, and returns results at or above the configured threshold.
func (d *Detector) Detect(ctx context.Context, input *pixbuf.Buffer) ([]detection.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := input
	if input.Width() != d.config.Width || input.Height() != d.config.Height {
		scaled, err := pixbuf.Scale(input, d.config.Width, d.config.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to fit model input: %w", err)
		}
		defer scaled.Release()
		src = scaled
	}

	tensor, release, err := d.inputTensor(src)
	if err != nil {
		return nil, err
	}
	defer release()

	outputs := make([]onnxruntime_go.Value, len(d.outputNames))
	if err := d.run(tensor, outputs); err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
			}
		}
	}()

	results, err := d.decode(outputs)
	if err != nil {
		return nil, err
	}
	return detection.Filter(results, d.config.Threshold), nil
}

func (d *Detector) run(input onnxruntime_go.Value, outputs []onnxruntime_go.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return errors.New("detector session is closed")
	}
	if err := d.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return nil
}

// inputTensor builds the model input from buf. The returned func destroys
// the tensor and recycles its backing slice.
func (d *Detector) inputTensor(buf *pixbuf.Buffer) (onnxruntime_go.Value, func(), error) {
	c := d.config
	shape := InputShape(c.Layout, c.Channels, c.Height, c.Width)

	if c.Quantized {
		var data []byte
		var err error
		if c.Channels == 1 {
			data, err = pixbuf.QuantizedGray(buf)
		} else {
			data, err = pixbuf.QuantizedRGB(buf, c.Layout)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to quantize input: %w", err)
		}
		if err := ValidateShape(shape, len(data)); err != nil {
			return nil, nil, err
		}
		t, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(shape...), data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return t, func() { destroyTensor(t) }, nil
	}

	var data []float32
	var err error
	if c.Channels == 1 {
		data, err = pixbuf.NormalizeGray(buf, c.Mean, c.Std)
	} else {
		data, err = pixbuf.NormalizeRGB(buf, c.Mean, c.Std, c.Layout)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize input: %w", err)
	}
	if err := ValidateShape(shape, len(data)); err != nil {
		mempool.PutFloat32(data)
		return nil, nil, err
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		lo, hi, mean := TensorStats(data)
		slog.Debug("Model input", "model", c.ModelPath, "min", lo, "max", hi, "mean", mean)
	}
	t, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(shape...), data)
	if err != nil {
		mempool.PutFloat32(data)
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	return t, func() {
		destroyTensor(t)
		mempool.PutFloat32(data)
	}, nil
}

func (d *Detector) decode(outputs []onnxruntime_go.Value) ([]detection.Result, error) {
	c := d.config
	switch c.Output {
	case OutputSequence:
		indices, err := toInts(outputs[0])
		if err != nil {
			return nil, err
		}
		slog.Debug("Sequence decoded", "text", digits.DecodeIndices(toIndexSlice(indices), c.Labels))
		return DecodeSequence(indices, c.inputSize(), c.Space, c.Labels), nil
	default:
		var out SSDOutput
		var err error
		if out.Boxes, err = toFloats(outputs[0]); err != nil {
			return nil, fmt.Errorf("boxes: %w", err)
		}
		if out.Classes, err = toFloats(outputs[1]); err != nil {
			return nil, fmt.Errorf("classes: %w", err)
		}
		if out.Scores, err = toFloats(outputs[2]); err != nil {
			return nil, fmt.Errorf("scores: %w", err)
		}
		out.Count = len(out.Scores)
		if len(outputs) == 4 {
			count, err := toFloats(outputs[3])
			if err != nil {
				return nil, fmt.Errorf("count: %w", err)
			}
			if len(count) > 0 {
				out.Count = int(count[0])
			}
		}
		return DecodeSSD(out, c.inputSize(), c.Space, c.Labels, c.LabelOffset)
	}
}

func toFloats(v onnxruntime_go.Value) ([]float32, error) {
	switch t := v.(type) {
	case *onnxruntime_go.Tensor[float32]:
		return t.GetData(), nil
	case *onnxruntime_go.Tensor[int64]:
		return convert[int64, float32](t.GetData()), nil
	case *onnxruntime_go.Tensor[int32]:
		return convert[int32, float32](t.GetData()), nil
	default:
		return nil, fmt.Errorf("unsupported output tensor %T", v)
	}
}

func toInts(v onnxruntime_go.Value) ([]int64, error) {
	switch t := v.(type) {
	case *onnxruntime_go.Tensor[int64]:
		return t.GetData(), nil
	case *onnxruntime_go.Tensor[int32]:
		return convert[int32, int64](t.GetData()), nil
	case *onnxruntime_go.Tensor[float32]:
		return convert[float32, int64](t.GetData()), nil
	default:
		return nil, fmt.Errorf("unsupported output tensor %T", v)
	}
}

func convert[From, To int32 | int64 | float32](in []From) []To {
	out := make([]To, len(in))
	for i, v := range in {
		out[i] = To(v)
	}
	return out
}

func toIndexSlice(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func destroyTensor(v onnxruntime_go.Value) {
	if err := v.Destroy(); err != nil {
		fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
	}
}
