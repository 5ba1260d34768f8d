package ffmpeg

import (
	"context"
	"encoding/binary"
	"math"
)

// Waveform extracts mono audio peak data for timeline display: the audio is
// resampled to 8 kHz mono 32-bit float PCM, normalised to [-1, 1], and
// peak-downsampled to the requested sample count. Files without usable
// audio yield all zeros.
func (c *Client) Waveform(ctx context.Context, path string, samples int) ([]float64, error) {
	result, err := c.runFFmpeg(ctx,
		"-hide_banner", "-loglevel", "warning",
		"-i", path,
		"-ac", "1",
		"-filter:a", "aresample=8000",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"pipe:1",
	)
	if err != nil {
		return nil, err
	}

	values := decodeF32LE(result.Stdout)
	if len(values) == 0 {
		if c.logger != nil {
			c.logger.Warn("no audio data for waveform", "stderr_tail", result.StderrTail)
		}
		return make([]float64, samples), nil
	}

	normalize(values)
	return downsamplePeaks(values, samples), nil
}

func decodeF32LE(data []byte) []float64 {
	n := len(data) / 4
	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		values = append(values, float64(math.Float32frombits(bits)))
	}
	return values
}

// normalize scales values in place so the largest magnitude becomes 1.
func normalize(values []float64) {
	maxVal := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > maxVal {
			maxVal = a
		}
	}
	if maxVal == 0 {
		return
	}
	for i := range values {
		values[i] /= maxVal
	}
}

// downsamplePeaks reduces values to the requested count, keeping the peak
// (largest magnitude, sign preserved) of each chunk for better visuals.
func downsamplePeaks(values []float64, samples int) []float64 {
	if samples <= 0 || len(values) <= samples {
		return values
	}

	chunkSize := float64(len(values)) / float64(samples)
	result := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		start := int(float64(i) * chunkSize)
		end := int(float64(i+1) * chunkSize)
		if end > len(values) {
			end = len(values)
		}
		if start >= end {
			result = append(result, 0)
			continue
		}
		peak := values[start]
		for _, v := range values[start+1 : end] {
			if math.Abs(v) > math.Abs(peak) {
				peak = v
			}
		}
		result = append(result, math.Round(peak*10000)/10000)
	}
	return result
}
