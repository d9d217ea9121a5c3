package infra

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// classLabels names the model's output classes in tensor order.
var classLabels = []string{"none", "great", "ante-great", "out"}

// actClasses are the classes that trigger a press.
var actClasses = map[int]bool{1: true, 2: true}

// PriorityClass is the class whose detection the configured ante delay
// compensates for: the frame arrives ahead of the actionable window.
const PriorityClass = 2

// ImageNet channel statistics, matching the model's training pipeline.
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// ONNXOptions configures the classifier session.
type ONNXOptions struct {
	ModelPath string

	// LibraryPath overrides the runtime's default shared library lookup.
	LibraryPath string

	UseGPU  bool
	Threads int
	Edge    int
}

// ONNXClassifier implements domain.Classifier on onnxruntime. Not safe for
// concurrent use: the session loop is the only caller.
type ONNXClassifier struct {
	opts     ONNXOptions
	logger   *zap.Logger
	provider string
	ownsEnv  bool

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewONNXClassifier loads the model and builds one reusable session. A GPU
// request the runtime cannot honor degrades to CPU with a warning rather
// than failing the session.
func NewONNXClassifier(opts ONNXOptions, logger *zap.Logger) (*ONNXClassifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Edge <= 0 {
		return nil, fmt.Errorf("invalid frame edge %d", opts.Edge)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	c := &ONNXClassifier{opts: opts, logger: logger, provider: "CPUExecutionProvider"}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
		c.ownsEnv = true
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		c.destroyEnv()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()

	if opts.Threads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.Threads); err != nil {
			c.destroyEnv()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}
	if opts.UseGPU {
		c.provider = appendCUDA(sessOpts, logger)
	}

	c.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.Edge), int64(opts.Edge)))
	if err != nil {
		c.destroyEnv()
		return nil, fmt.Errorf("failed to allocate input tensor: %w", err)
	}
	c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(classLabels))))
	if err != nil {
		c.input.Destroy()
		c.destroyEnv()
		return nil, fmt.Errorf("failed to allocate output tensor: %w", err)
	}

	c.session, err = ort.NewAdvancedSession(opts.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{c.input}, []ort.Value{c.output}, sessOpts)
	if err != nil {
		c.input.Destroy()
		c.output.Destroy()
		c.destroyEnv()
		return nil, fmt.Errorf("failed to load model %s: %w", opts.ModelPath, err)
	}

	logger.Info("classifier ready",
		zap.String("model", opts.ModelPath),
		zap.String("provider", c.provider),
		zap.Int("edge", opts.Edge))
	return c, nil
}

// appendCUDA tries to attach the CUDA execution provider and reports which
// provider ended up active.
func appendCUDA(sessOpts *ort.SessionOptions, logger *zap.Logger) string {
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		logger.Warn("CUDA unavailable, falling back to CPU", zap.Error(err))
		return "CPUExecutionProvider"
	}
	defer cudaOpts.Destroy()
	if err := sessOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		logger.Warn("failed to enable CUDA, falling back to CPU", zap.Error(err))
		return "CPUExecutionProvider"
	}
	return "CUDAExecutionProvider"
}

// Provider reports the active execution backend name.
func (c *ONNXClassifier) Provider() string {
	return c.provider
}

// Predict classifies one frame.
func (c *ONNXClassifier) Predict(ctx context.Context, frame domain.Frame) (domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}
	if err := preprocess(c.input.GetData(), frame.Pixels, c.opts.Edge); err != nil {
		return domain.Prediction{}, err
	}
	if err := c.session.Run(); err != nil {
		return domain.Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	return interpret(c.output.GetData()), nil
}

// interpret turns raw logits into a prediction.
func interpret(logits []float32) domain.Prediction {
	probs := softmax(logits)
	class := 0
	for i, p := range probs {
		if p > probs[class] {
			class = i
		}
	}
	byLabel := make(map[string]float32, len(probs))
	for i, p := range probs {
		byLabel[labelFor(i)] = p
	}
	return domain.Prediction{
		Class:     class,
		Label:     labelFor(class),
		Probs:     byLabel,
		ShouldAct: actClasses[class],
	}
}

func labelFor(class int) string {
	if class < 0 || class >= len(classLabels) {
		return fmt.Sprintf("class %d", class)
	}
	return classLabels[class]
}

// preprocess scales tight RGB24 bytes into the model's NCHW float32 layout
// with the ImageNet channel statistics.
func preprocess(dst []float32, pixels []byte, edge int) error {
	plane := edge * edge
	if len(pixels) != plane*3 {
		return fmt.Errorf("frame has %d bytes, model wants %d", len(pixels), plane*3)
	}
	if len(dst) != plane*3 {
		return fmt.Errorf("input tensor holds %d floats, model wants %d", len(dst), plane*3)
	}
	for i := 0; i < plane; i++ {
		for ch := 0; ch < 3; ch++ {
			v := float32(pixels[i*3+ch]) / 255
			dst[ch*plane+i] = (v - channelMean[ch]) / channelStd[ch]
		}
	}
	return nil
}

// softmax converts logits to probabilities, shifted by the max for
// numerical stability.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxv))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// Close releases the session and, when this classifier initialized it, the
// runtime environment.
func (c *ONNXClassifier) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.session != nil {
		c.session.Destroy()
	}
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	c.destroyEnv()
	return nil
}

func (c *ONNXClassifier) destroyEnv() {
	if c.ownsEnv {
		ort.DestroyEnvironment()
		c.ownsEnv = false
	}
}

// Ensure ONNXClassifier implements domain.Classifier.
var _ domain.Classifier = (*ONNXClassifier)(nil)
