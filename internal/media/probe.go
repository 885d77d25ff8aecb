package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/joseph-ayodele/vidscreen/internal/common"
)

// Metadata is what ffprobe tells us about a clip.
type Metadata struct {
	Duration float64 // seconds
	Width    int
	Height   int
	Codec    string
	Bitrate  int64
}

// RoundedDuration is the duration rounded to whole seconds, as stored on the video.
func (m Metadata) RoundedDuration() float64 {
	return math.Round(m.Duration)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads duration and the first video stream's properties.
func (e *Extractor) Probe(ctx context.Context, path string) (Metadata, error) {
	if err := requireFile(path); err != nil {
		return Metadata{}, err
	}
	stdout, stderr, err := e.runner.Run(ctx, e.cfg.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Metadata{}, common.NewAppError(common.CodeProbeFailed,
			fmt.Sprintf("ffprobe %s: %s", path, truncate(string(stderr), 512)),
			fmt.Errorf("%w: %v", ErrProbe, err))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return Metadata{}, common.NewAppError(common.CodeProbeFailed, "decode ffprobe output",
			fmt.Errorf("%w: %v", ErrProbe, err))
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Metadata{}, common.NewAppError(common.CodeProbeFailed,
			fmt.Sprintf("invalid duration %q", out.Format.Duration), ErrProbe)
	}

	meta := Metadata{Duration: duration}
	if br, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		meta.Bitrate = br
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			meta.Codec = s.CodecName
			break
		}
	}

	e.logger.Debug("media.probe.ok", "path", path, "duration", meta.Duration, "codec", meta.Codec,
		"width", meta.Width, "height", meta.Height)
	return meta, nil
}
