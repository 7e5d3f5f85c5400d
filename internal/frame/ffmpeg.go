package frame

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// DefaultJPEGQuality is the ffmpeg -q:v value used when none is configured.
// The 2-31 scale is inverted; 4 lands near 85% JPEG quality.
const DefaultJPEGQuality = 4

// FFmpeg wraps ffmpeg/ffprobe for duration probing and still-frame capture.
// Inputs may be local paths or URLs, both of which ffmpeg reads directly.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	jpegQuality int
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath, tempDir string, jpegQuality int) *FFmpeg {
	if jpegQuality <= 0 || jpegQuality > 31 {
		jpegQuality = DefaultJPEGQuality
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		jpegQuality: jpegQuality,
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration of a video source in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, source string) (float64, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		source,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	return parseProbeDuration(stdout.Bytes())
}

func parseProbeDuration(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if out.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", out.Format.Duration, err)
	}

	return duration, nil
}

// CaptureFrame renders the frame at timeSeconds as a JPEG and returns its
// bytes. The frame is written to a temp file that is removed before return.
func (f *FFmpeg) CaptureFrame(ctx context.Context, source string, timeSeconds float64) ([]byte, error) {
	if timeSeconds < 0 {
		timeSeconds = 0
	}

	dir, err := os.MkdirTemp(f.tempDir, "frame-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	outputPath := filepath.Join(dir, "frame.jpg")

	args := []string{
		"-ss", fmt.Sprintf("%.3f", timeSeconds),
		"-i", source,
		"-vframes", "1",
		"-q:v", strconv.Itoa(f.jpegQuality),
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w, stderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read captured frame: %w", err)
	}

	return data, nil
}
