package toolchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png" // GrabFrame pipes PNG out of the decoder
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg implements Toolchain by shelling out to ffmpeg/ffprobe.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg returns a toolchain using the ffmpeg/ffprobe binaries on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Check verifies both binaries are present.
func (f *FFmpeg) Check() error {
	for _, bin := range []string{f.FFmpegPath, f.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

// probeOutput mirrors the subset of ffprobe's JSON output we read.
type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (Info, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	info := Info{}
	if d, err := strconv.ParseFloat(strings.TrimSpace(po.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	if len(po.Streams) > 0 {
		s := po.Streams[0]
		info.Width = s.Width
		info.Height = s.Height
		info.FPS = parseFrameRate(s.RFrameRate)
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("ffprobe reported no duration")
	}
	return info, nil
}

// parseFrameRate parses ffprobe's "num/den" rational frame rate.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func (f *FFmpeg) ExtractClip(ctx context.Context, src string, start, duration float64, dest string) error {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("extract clip at %.2fs: %w: %s", start, err, tail(out))
	}
	return nil
}

func (f *FFmpeg) Concat(ctx context.Context, clips []string, dest string) error {
	if len(clips) == 0 {
		return fmt.Errorf("concat: no clips")
	}
	list, err := writeConcatList(clips)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", list,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("concat %d clips: %w: %s", len(clips), err, tail(out))
	}
	return nil
}

// writeConcatList writes the concat demuxer's file list next to the first
// clip.
func writeConcatList(clips []string) (string, error) {
	var b strings.Builder
	for _, c := range clips {
		abs, err := filepath.Abs(c)
		if err != nil {
			return "", fmt.Errorf("concat list: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	tmp, err := os.CreateTemp(filepath.Dir(clips[0]), "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("concat list: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("concat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("concat list: %w", err)
	}
	return tmp.Name(), nil
}

func (f *FFmpeg) GrabFrame(ctx context.Context, src string, timestamp float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-ss", formatSeconds(timestamp),
		"-i", src,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("grab frame at %.2fs: %w: %s", timestamp, err, tail(stderr.Bytes()))
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.2fs: %w", timestamp, err)
	}
	return img, nil
}

func (f *FFmpeg) TranscodeFrames(ctx context.Context, src, dest string, transform FrameTransform) error {
	info, err := f.Probe(ctx, src)
	if err != nil {
		return err
	}
	if info.Width == 0 || info.Height == 0 {
		return fmt.Errorf("transcode: no video stream in %s", src)
	}
	fps := info.FPS
	if fps <= 0 {
		fps = 30
	}

	decode := exec.CommandContext(ctx, f.FFmpegPath,
		"-i", src,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	encode := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		dest,
	)

	frames, err := decode.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	sink, err := encode.StdinPipe()
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	var encErr bytes.Buffer
	encode.Stderr = &encErr

	if err := decode.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	if err := encode.Start(); err != nil {
		decode.Process.Kill()
		decode.Wait()
		return fmt.Errorf("start encoder: %w", err)
	}

	pumpErr := pumpFrames(frames, sink, info.Width, info.Height, transform)
	sink.Close()

	decodeErr := decode.Wait()
	encodeErr := encode.Wait()
	if pumpErr != nil {
		return fmt.Errorf("frame pump: %w", pumpErr)
	}
	if decodeErr != nil {
		return fmt.Errorf("decoder: %w", decodeErr)
	}
	if encodeErr != nil {
		return fmt.Errorf("encoder: %w: %s", encodeErr, tail(encErr.Bytes()))
	}
	return nil
}

// pumpFrames shuttles raw RGBA frames from the decoder through transform to
// the encoder.
func pumpFrames(r io.Reader, w io.Writer, width, height int, transform FrameTransform) error {
	frameSize := width * height * 4
	buf := make([]byte, frameSize)
	frame := &image.RGBA{
		Pix:    buf,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated frame")
		}
		if err != nil {
			return err
		}
		if transform != nil {
			transform(frame)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
}

func (f *FFmpeg) RemuxAudio(ctx context.Context, videoIn, audioSource, dest string) error {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-i", videoIn,
		"-i", audioSource,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-shortest",
		dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("remux audio: %w: %s", err, tail(out))
	}
	return nil
}

// formatSeconds renders a timestamp the way ffmpeg expects.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// tail returns the last few hundred bytes of tool output for error messages.
func tail(out []byte) string {
	const max = 400
	out = bytes.TrimSpace(out)
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return string(out)
}
