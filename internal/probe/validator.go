// Package probe classifies files on the host file system as importable
// video files. Codec/container inspection beyond "is this a video" is
// deliberately not performed here.
package probe

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"
	"github.com/gabriel-vasile/mimetype"
	"github.com/hbomb79/Reel/pkg/logger"
)

var (
	ErrNotRegularFile = errors.New("path does not reference a regular file")
	ErrNotVideo       = errors.New("file is not a recognised video container")
	ErrNoVideoStream  = errors.New("file contains no video stream")

	log = logger.Get("Probe")
)

// Config controls how deeply files are inspected. If FfprobeBinaryPath
// is empty, only the file signature is checked; otherwise ffprobe is also
// used to ensure the container holds at least one video stream.
type Config struct {
	FfprobeBinaryPath string `yaml:"ffprobe_binary" env:"FORMAT_FFPROBE_BINARY_PATH"`
}

type Validator struct {
	config Config
}

func NewValidator(config Config) *Validator {
	return &Validator{config: config}
}

// Validate returns nil if the path provided references an existing, readable
// file whose contents are recognised as a video container. An error
// describing why the file is not importable is returned otherwise.
func (validator *Validator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !isVideo(mtype) {
		return fmt.Errorf("%s (detected %s): %w", path, mtype.String(), ErrNotVideo)
	}

	if validator.config.FfprobeBinaryPath != "" {
		if err := validator.probeStreams(path); err != nil {
			return err
		}
	}

	log.Emit(logger.VERBOSE, "Validated %s as %s\n", path, mtype.String())
	return nil
}

// probeStreams uses ffprobe to ensure the file has at least one
// video stream.
func (validator *Validator) probeStreams(path string) error {
	cfg := &ffmpeg.Config{FfprobeBinPath: validator.config.FfprobeBinaryPath}
	metadata, err := ffmpeg.New(cfg).Input(path).GetMetadata()
	if err != nil {
		return fmt.Errorf("failed to probe %s using ffprobe: %w", path, err)
	}

	for _, stream := range metadata.GetStreams() {
		if stream.GetCodecType() == "video" {
			return nil
		}
	}

	return fmt.Errorf("%s: %w", path, ErrNoVideoStream)
}

// isVideo walks the detected MIME type and its parents, looking
// for a video type. Some containers (e.g. MKV) are detected as a
// more specific type whose parent is the generic container.
func isVideo(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}

	return false
}
