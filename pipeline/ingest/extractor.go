package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/medialens/medialens/logging/logger"
)

// Frame is one extracted still, named by its timestamp in the video.
type Frame struct {
	TimestampSeconds int
	Path             string // local path of the extracted still
}

// Extractor splits a video into ordered frame stills at a fixed interval.
type Extractor interface {
	// Probe returns the video duration in seconds.
	Probe(ctx context.Context, path string) (float64, error)

	// Extract produces one still per interval step, ordered by ascending
	// timestamp. A frame that fails to extract is skipped, leaving a gap;
	// only a fully failed extraction is an error. All stills share one
	// directory, removed by the caller once they are consumed.
	Extract(ctx context.Context, path string, intervalSeconds int) ([]Frame, error)
}

// FFmpegExtractor extracts frames by shelling out to ffmpeg/ffprobe.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *logger.Logger
}

// NewFFmpegExtractor creates an extractor. Empty paths fall back to
// resolving ffmpeg/ffprobe on PATH.
func NewFFmpegExtractor(ffmpegPath, ffprobePath string, log *logger.Logger) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegExtractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      log,
	}
}

// Probe returns the container duration reported by ffprobe.
func (e *FFmpegExtractor) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", out.String(), err)
	}
	return duration, nil
}

// Extract pulls one still per interval step. Stills land in a temporary
// directory the caller removes once the frames are consumed.
func (e *FFmpegExtractor) Extract(ctx context.Context, path string, intervalSeconds int) ([]Frame, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", intervalSeconds)
	}

	duration, err := e.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "medialens-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create frames directory: %w", err)
	}

	var frames []Frame
	for ts := 0; float64(ts) < duration; ts += intervalSeconds {
		framePath := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", ts))
		cmd := exec.CommandContext(ctx, e.ffmpegPath,
			"-v", "error",
			"-ss", strconv.Itoa(ts),
			"-i", path,
			"-frames:v", "1",
			"-q:v", "2",
			framePath,
		)
		if err := cmd.Run(); err != nil {
			// A single failed frame degrades quality, it does not fail
			// the job. The gap stays visible in the sequence.
			e.logger.Warn(ctx, "frame extraction failed, skipping", "video", path, "timestamp", ts, "error", err)
			continue
		}
		frames = append(frames, Frame{TimestampSeconds: ts, Path: framePath})
	}

	if len(frames) == 0 {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("no frames extracted from %s", path)
	}

	return frames, nil
}
