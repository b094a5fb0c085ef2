package coordinator

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mandelmovie/mandelbrot"
	"mandelmovie/misc"
)

const (
	IsolationProcess   = "process"
	IsolationInProcess = "inprocess"
)

type ViewSettings struct {
	CenterX       float64 `toml:"center_x"`
	CenterY       float64 `toml:"center_y"`
	Height        int     `toml:"height"`
	MaxIterations int     `toml:"max_iterations"`
	Width         int     `toml:"width"`
}

type ZoomSettings struct {
	EndScale   float64 `toml:"end_scale"`
	FrameCount int     `toml:"frame_count"`
	StartScale float64 `toml:"start_scale"`
}

type FarmSettings struct {
	FrameExtension      string `toml:"frame_extension"`
	FrameTimeoutSeconds int    `toml:"frame_timeout_seconds"`
	Isolation           string `toml:"isolation"`
	MaxConcurrentFrames int    `toml:"max_concurrent_frames"`
	Resume              bool   `toml:"resume"`
	WorkersPerFrame     int    `toml:"workers_per_frame"`
}

type PaletteSettings struct {
	Colors      []string `toml:"colors"`
	EscapeColor string   `toml:"escape_color"`
}

type MovieSettings struct {
	Encoder     string   `toml:"encoder"`
	EncoderArgs []string `toml:"encoder_args"`
	FrameRate   int      `toml:"frame_rate"`
	Generate    bool     `toml:"generate"`
	Output      string   `toml:"output"`
}

// Settings describe a whole zoom movie run.
type Settings struct {
	LogLevel string `toml:"log_level"`
	RunName  string `toml:"run_name"`
	SavePath string `toml:"save_path"`

	Farm    FarmSettings    `toml:"farm"`
	Movie   MovieSettings   `toml:"movie"`
	Palette PaletteSettings `toml:"palette"`
	View    ViewSettings    `toml:"view"`
	Zoom    ZoomSettings    `toml:"zoom"`
}

// DefaultSettings reproduce the classic mandelmovie run: 50 frames of 500x500 zooming
// from 2 to 0.00001 around (0.286932, 0.014287).
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "normal",
		Farm: FarmSettings{
			FrameExtension:      "bmp",
			Isolation:           IsolationProcess,
			MaxConcurrentFrames: runtime.NumCPU(),
			WorkersPerFrame:     1,
		},
		Movie: MovieSettings{
			Encoder:   "ffmpeg",
			FrameRate: 25,
			Generate:  true,
			Output:    "mandel.mpg",
		},
		View: ViewSettings{
			CenterX:       0.286932,
			CenterY:       0.014287,
			Height:        500,
			MaxIterations: 1000,
			Width:         500,
		},
		Zoom: ZoomSettings{
			EndScale:   0.00001,
			FrameCount: 50,
			StartScale: 2,
		},
	}
}

// LoadSettings decodes a TOML file over the defaults. An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("%w: settings file %s does not exist", misc.ErrConfiguration, path)
		}
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: parse settings %s: %v", misc.ErrConfiguration, path, err)
	}
	return s, nil
}

// Verify fills unset values with defaults and rejects values that can never work.
func (s *Settings) Verify() error {
	defaults := DefaultSettings()

	if s.RunName == "" {
		s.RunName = defaultRunName(time.Now())
	}
	if strings.ContainsAny(s.RunName, `/\`) {
		return fmt.Errorf("%w: run name %q must not contain path separators", misc.ErrConfiguration, s.RunName)
	}
	if s.SavePath == "" {
		s.SavePath, _ = os.Getwd()
	}
	if s.LogLevel == "" {
		s.LogLevel = defaults.LogLevel
	}

	if s.View.Width == 0 {
		s.View.Width = defaults.View.Width
	}
	if s.View.Height == 0 {
		s.View.Height = defaults.View.Height
	}
	if s.View.MaxIterations == 0 {
		s.View.MaxIterations = defaults.View.MaxIterations
	}
	if s.View.Width < 0 || s.View.Height < 0 {
		return fmt.Errorf("%w: image size %dx%d", misc.ErrConfiguration, s.View.Width, s.View.Height)
	}
	if s.View.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations %d", misc.ErrConfiguration, s.View.MaxIterations)
	}
	if math.IsNaN(s.View.CenterX) || math.IsNaN(s.View.CenterY) {
		return fmt.Errorf("%w: center must be a number", misc.ErrConfiguration)
	}

	if s.Zoom.StartScale == 0 {
		s.Zoom.StartScale = defaults.Zoom.StartScale
	}
	if s.Zoom.EndScale == 0 {
		s.Zoom.EndScale = defaults.Zoom.EndScale
	}
	if s.Zoom.FrameCount == 0 {
		s.Zoom.FrameCount = defaults.Zoom.FrameCount
	}
	if _, err := GenerateSchedule(s.Zoom.StartScale, s.Zoom.EndScale, s.Zoom.FrameCount); err != nil {
		return err
	}

	if s.Farm.WorkersPerFrame == 0 {
		s.Farm.WorkersPerFrame = defaults.Farm.WorkersPerFrame
	}
	if s.Farm.WorkersPerFrame < 0 {
		return fmt.Errorf("%w: workers per frame %d", misc.ErrConfiguration, s.Farm.WorkersPerFrame)
	}
	if s.Farm.MaxConcurrentFrames == 0 {
		s.Farm.MaxConcurrentFrames = defaults.Farm.MaxConcurrentFrames
	}
	if s.Farm.MaxConcurrentFrames < 0 {
		return fmt.Errorf("%w: max concurrent frames %d", misc.ErrConfiguration, s.Farm.MaxConcurrentFrames)
	}
	if s.Farm.FrameTimeoutSeconds < 0 {
		return fmt.Errorf("%w: frame timeout %d seconds", misc.ErrConfiguration, s.Farm.FrameTimeoutSeconds)
	}
	s.Farm.FrameExtension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s.Farm.FrameExtension), "."))
	if s.Farm.FrameExtension == "" {
		s.Farm.FrameExtension = defaults.Farm.FrameExtension
	}
	switch s.Farm.FrameExtension {
	case "bmp", "png", "jpg", "jpeg", "gif", "tif", "tiff":
	default:
		return fmt.Errorf("%w: unsupported frame extension %q", misc.ErrConfiguration, s.Farm.FrameExtension)
	}
	switch s.Farm.Isolation {
	case "":
		s.Farm.Isolation = defaults.Farm.Isolation
	case IsolationProcess, IsolationInProcess:
	default:
		return fmt.Errorf("%w: isolation must be %q or %q, got %q", misc.ErrConfiguration, IsolationProcess, IsolationInProcess, s.Farm.Isolation)
	}

	if _, err := s.ColorPalette(); err != nil {
		return err
	}

	if s.Movie.Encoder == "" {
		s.Movie.Encoder = defaults.Movie.Encoder
	}
	if s.Movie.FrameRate == 0 {
		s.Movie.FrameRate = defaults.Movie.FrameRate
	}
	if s.Movie.FrameRate < 0 {
		return fmt.Errorf("%w: frame rate %d", misc.ErrConfiguration, s.Movie.FrameRate)
	}
	if s.Movie.Output == "" {
		s.Movie.Output = defaults.Movie.Output
	}
	return nil
}

// ColorPalette returns the configured palette, or the default one when no colors are set.
func (s *Settings) ColorPalette() (mandelbrot.Palette, error) {
	if len(s.Palette.Colors) == 0 {
		palette := mandelbrot.DefaultPalette()
		if s.Palette.EscapeColor != "" {
			escape, err := mandelbrot.ParseHexColor(s.Palette.EscapeColor)
			if err != nil {
				return mandelbrot.Palette{}, err
			}
			palette.EscapeColor = escape
		}
		return palette, nil
	}
	return mandelbrot.ParsePalette(s.Palette.EscapeColor, s.Palette.Colors)
}

func (s *Settings) Template() Template {
	return Template{
		CenterX:       s.View.CenterX,
		CenterY:       s.View.CenterY,
		Height:        s.View.Height,
		MaxIterations: s.View.MaxIterations,
		Width:         s.View.Width,
		WorkerCount:   s.Farm.WorkersPerFrame,
	}
}

// defaultRunName stamps an unnamed run with a 24 hour clock so runs started twelve
// hours apart never share a folder.
func defaultRunName(now time.Time) string {
	return "run_" + now.Format("2006_01_02-15_04_05")
}

func (s *Settings) FrameTimeout() time.Duration {
	return time.Duration(s.Farm.FrameTimeoutSeconds) * time.Second
}

func (s *Settings) String() string {
	output := "\nMovie settings\n"
	output += fmt.Sprintf("Run: %s in %s\n", s.RunName, s.SavePath)
	output += fmt.Sprintf("Center: (%g, %g)\n", s.View.CenterX, s.View.CenterY)
	output += fmt.Sprintf("Size: %dx%d, max iterations %d\n", s.View.Width, s.View.Height, s.View.MaxIterations)
	output += fmt.Sprintf("Zoom: %g -> %g over %d frames\n", s.Zoom.StartScale, s.Zoom.EndScale, s.Zoom.FrameCount)
	output += fmt.Sprintf("Farm: %d workers per frame, %d frames at once, %s isolation\n", s.Farm.WorkersPerFrame, s.Farm.MaxConcurrentFrames, s.Farm.Isolation)
	output += fmt.Sprintf("Movie: %t -> %s", s.Movie.Generate, s.Movie.Output)
	return output
}
