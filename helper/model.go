package helper

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// ModelDir is the directory downloaded models are stored in
var ModelDir = "./models"

// ModelPath returns the directory of a model. Slashes in the name are
// replaced so the name can be used as a directory.
func ModelPath(modelName string) string {
	return filepath.Join(ModelDir, strings.ReplaceAll(modelName, "/", "_"))
}

// PrepareModel downloads the model unless it is stored already and returns
// the model path. With an onnx file path the model counts as stored once that
// file is present, so the encoders of one repository share the directory.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelPath := ModelPath(modelName)

	stored := modelPath
	if onnxFilePath != "" {
		stored = filepath.Join(modelPath, path.Base(onnxFilePath))
	}
	if _, err := os.Stat(stored); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model: %w", err)
	}

	if err := os.MkdirAll(ModelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, ModelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", modelName, err)
	}

	return downloadedPath, nil
}
