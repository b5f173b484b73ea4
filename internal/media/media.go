// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package media prepares report images for upload. Images are downscaled to the
// configured bounds and re-encoded as JPEG before they are base64-encoded, keeping
// upload payloads small on rural connections.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	DefaultMaxWidth  = 1024
	DefaultMaxHeight = 1024
	DefaultQuality   = 80
)

// imageExtensions lists the file extensions accepted by the report watcher.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
}

// IsImageFile reports whether the file name carries a supported image extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ResizeToBase64 reads the image at path, scales it down to fit within
// maxWidth x maxHeight while preserving the aspect ratio and returns the
// base64-encoded JPEG. Images already within bounds are only re-encoded.
func ResizeToBase64(path string, maxWidth, maxHeight, quality int) (string, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	buf := bytes.NewBuffer(nil)
	if err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FileToBase64 returns the raw file contents base64-encoded, without any
// transformation. Used for files that are not images.
func FileToBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
