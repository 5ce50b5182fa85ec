package detector

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/tablo/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// ensureRuntime points onnxruntime_go at the shared library and starts the environment if no
// other session has done so yet.
func ensureRuntime(useGPU bool) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if err := onnx.SetONNXLibraryPath(useGPU); err != nil {
		return fmt.Errorf("onnx runtime library: %w", err)
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx runtime init: %w", err)
	}
	return nil
}

// modelSession is an open session together with the tensors it was opened for.
type modelSession struct {
	session *onnxruntime_go.DynamicAdvancedSession
	input   onnxruntime_go.InputOutputInfo
	output  onnxruntime_go.InputOutputInfo
}

func openSession(config Config) (*modelSession, error) {
	if err := ensureRuntime(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	input, output, err := validateModelInfo(config.ModelPath)
	if err != nil {
		return nil, err
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Destroying session options failed", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(opts, config.GPU); err != nil {
		return nil, fmt.Errorf("gpu session options: %w", err)
	}
	if n := config.NumThreads; n > 0 {
		if err := opts.SetIntraOpNumThreads(n); err != nil {
			return nil, fmt.Errorf("intra-op threads %d: %w", n, err)
		}
	}

	s, err := onnxruntime_go.NewDynamicAdvancedSession(config.ModelPath,
		[]string{input.Name}, []string{output.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("open detector model %s: %w", config.ModelPath, err)
	}
	return &modelSession{session: s, input: input, output: output}, nil
}
