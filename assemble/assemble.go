// Package assemble turns a captured frame sequence into the primary animated
// GIF and a one-tenth scale thumbnail derived from it.
//
// The thumbnail is always derived by reading the primary file back, never
// from the in-memory frames, so both artifacts agree on frame count and
// per-frame delay by construction.
package assemble

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

const (
	// DefaultDelay is the per-frame display time of the primary GIF, in
	// hundredths of a second.
	DefaultDelay = 10
	// ThumbnailDivisor shrinks each thumbnail dimension to floor(d/10).
	ThumbnailDivisor = 10
	// ThumbnailSuffix is inserted before the extension of the primary name.
	ThumbnailSuffix = "_scaled"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("assemble: empty frame sequence")

// FrameSequence holds captured frames in capture order.
type FrameSequence []image.Image

// Artifact describes the two files written for one capture.
type Artifact struct {
	PrimaryFile   string
	ThumbnailFile string
	FrameCount    int
	// Delays holds the per-frame delay of both files, in 1/100 s.
	Delays []int
}

// Assembler writes artifacts into one output directory.
type Assembler struct {
	dir    string
	delay  int
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithDelay overrides DefaultDelay.
func WithDelay(centis int) Option {
	return func(a *Assembler) { a.delay = centis }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// New creates an Assembler writing into dir. The directory is created on
// first use.
func New(dir string, opts ...Option) *Assembler {
	a := &Assembler{dir: dir, delay: DefaultDelay, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble writes <dir>/<filename> and its thumbnail.
func (a *Assembler) Assemble(frames FrameSequence, filename string) (Artifact, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("assemble: mkdir %s: %w", a.dir, err)
	}
	primary := filepath.Join(a.dir, filename)

	if err := a.WritePrimary(frames, primary); err != nil {
		return Artifact{}, err
	}

	thumb, g, err := WriteThumbnail(primary)
	if err != nil {
		return Artifact{}, err
	}

	a.logger.Info("assemble: artifact written",
		"primary", primary, "thumbnail", thumb, "frames", len(g.Image))

	return Artifact{
		PrimaryFile:   primary,
		ThumbnailFile: thumb,
		FrameCount:    len(g.Image),
		Delays:        g.Delay,
	}, nil
}

// WritePrimary encodes frames in order with the assembler's delay and no
// loop extension (the GIF plays once).
func (a *Assembler) WritePrimary(frames FrameSequence, path string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}

	g := &gif.GIF{LoopCount: -1}
	for i, f := range frames {
		if f == nil {
			return fmt.Errorf("assemble: frame %d is nil", i)
		}
		g.Image = append(g.Image, quantize(f))
		g.Delay = append(g.Delay, a.delay)
	}
	return writeGIF(path, g)
}

// WriteThumbnail reads the primary GIF back, scales every frame to
// floor(w/10) x floor(h/10) and writes <stem>_scaled.gif with the same frame
// order and delays, looping forever. A primary that cannot be read back is an
// error.
func WriteThumbnail(primary string) (string, *gif.GIF, error) {
	src, err := readGIF(primary)
	if err != nil {
		return "", nil, fmt.Errorf("assemble: read back %s: %w", primary, err)
	}

	out := &gif.GIF{LoopCount: 0}
	for i, frame := range src.Image {
		scaled, err := scaleFrame(frame)
		if err != nil {
			return "", nil, fmt.Errorf("assemble: frame %d: %w", i, err)
		}
		out.Image = append(out.Image, scaled)
		out.Delay = append(out.Delay, src.Delay[i])
		if i < len(src.Disposal) {
			out.Disposal = append(out.Disposal, src.Disposal[i])
		}
	}
	if len(out.Disposal) != len(out.Image) {
		out.Disposal = nil
	}

	thumb := ThumbnailName(primary)
	if err := writeGIF(thumb, out); err != nil {
		return "", nil, err
	}
	return thumb, out, nil
}

// ThumbnailName inserts ThumbnailSuffix before the extension.
func ThumbnailName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ThumbnailSuffix + ".gif"
}

// Filename derives the primary artifact name from the capture time and the
// catalog key, e.g. 202305141230_Calgary_z1_weathernetwork.gif.
func Filename(t time.Time, city string, zoom int, source string) string {
	safe := strings.NewReplacer("/", "-", `\`, "-").Replace(city)
	return t.Format("200601021504") + "_" + safe + "_z" + strconv.Itoa(zoom) + "_" + source + ".gif"
}

func quantize(src image.Image) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, b.Min)
	return dst
}

func scaleFrame(frame *image.Paletted) (*image.Paletted, error) {
	b := frame.Bounds()
	w, h := b.Dx()/ThumbnailDivisor, b.Dy()/ThumbnailDivisor
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%dx%d frame too small to scale", b.Dx(), b.Dy())
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), frame, b, draw.Src, nil)

	dst := image.NewPaletted(rgba.Bounds(), frame.Palette)
	draw.Draw(dst, dst.Bounds(), rgba, image.Point{}, draw.Src)
	return dst, nil
}

func readGIF(path string) (*gif.GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gif.DecodeAll(f)
}

// writeGIF writes path atomically (tmp file then rename) so the viewer never
// serves a half-written artifact.
func writeGIF(path string, g *gif.GIF) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("assemble: create %s: %w", tmp, err)
	}
	if err := gif.EncodeAll(f, g); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("assemble: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("assemble: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("assemble: rename: %w", err)
	}
	return nil
}
