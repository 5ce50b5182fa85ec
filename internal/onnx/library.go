package onnx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath points directly at an ONNX Runtime shared library and wins over every
// search location.
const EnvLibraryPath = "TABLO_ONNXRUNTIME_LIB"

var systemLibDirs = []string{"/usr/local/lib", "/usr/lib", "/opt/onnxruntime/cpu/lib"}

// libraryName is the shared library file name on goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	}
	return "", fmt.Errorf("unsupported operating system: %s", goos)
}

// libraryCandidates lists where the runtime is looked for, in order. GPU builds come first
// when useGPU is set; the bundled copy under <project>/onnxruntime comes last.
func libraryCandidates(useGPU bool, projectRoot string) ([]string, error) {
	name, err := libraryName(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	var out []string
	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	for _, dir := range systemLibDirs {
		out = append(out, filepath.Join(dir, name))
	}
	if projectRoot != "" {
		if useGPU {
			out = append(out, filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", name))
		}
		out = append(out, filepath.Join(projectRoot, "onnxruntime", "lib", name))
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SetONNXLibraryPath locates the ONNX Runtime shared library and hands it to onnxruntime_go.
// TABLO_ONNXRUNTIME_LIB overrides the search.
func SetONNXLibraryPath(useGPU bool) error {
	if p := os.Getenv(EnvLibraryPath); p != "" {
		if !fileExists(p) {
			return fmt.Errorf("ONNX Runtime library from %s not found at %s", EnvLibraryPath, p)
		}
		onnxruntime_go.SetSharedLibraryPath(p)
		return nil
	}

	root, _ := models.ProjectRoot()
	candidates, err := libraryCandidates(useGPU, root)
	if err != nil {
		return err
	}
	for _, p := range candidates {
		if fileExists(p) {
			onnxruntime_go.SetSharedLibraryPath(p)
			return nil
		}
	}
	return fmt.Errorf("ONNX Runtime library not found (tried %d locations, set %s)", len(candidates), EnvLibraryPath)
}
