package roomview

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/renderspace/roomview/core"
	"github.com/renderspace/roomview/layout"
	"github.com/renderspace/roomview/pointcloud"
)

var ErrInvalidConfig = errors.New("invalid config")

const maxConfigSize = 1 << 20

// NormalizeConfig is the textual form of pointcloud.Options.
type NormalizeConfig struct {
	TargetSize  float64 `json:"target_size" yaml:"target_size"`
	Origin      string  `json:"origin" yaml:"origin"`
	Color       string  `json:"color" yaml:"color"`
	Orientation string  `json:"orientation" yaml:"orientation"`
}

func (n NormalizeConfig) Options() (pointcloud.Options, error) {
	origin, err := pointcloud.ParseOriginPolicy(n.Origin)
	if err != nil {
		return pointcloud.Options{}, err
	}
	color, err := pointcloud.ParseColorPolicy(n.Color)
	if err != nil {
		return pointcloud.Options{}, err
	}
	orientation, err := pointcloud.OrientationByName(n.Orientation)
	if err != nil {
		return pointcloud.Options{}, err
	}
	opts := pointcloud.Options{
		TargetSize:  n.TargetSize,
		Origin:      origin,
		Color:       color,
		Orientation: orientation,
	}
	return opts, opts.Validate()
}

type CameraConfig struct {
	Position [3]float64 `json:"position" yaml:"position"`
	Target   [3]float64 `json:"target" yaml:"target"`
	FovY     float64    `json:"fov_y" yaml:"fov_y"`
	Near     float64    `json:"near" yaml:"near"`
	Far      float64    `json:"far" yaml:"far"`
}

func (c CameraConfig) Camera(aspect float64) *core.PerspectiveCamera {
	cam := core.NewPerspectiveCamera(c.FovY, aspect, c.Near, c.Far)
	cam.Position = mgl64.Vec3(c.Position)
	cam.Target = mgl64.Vec3(c.Target)
	return cam
}

type ViewportConfig struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (v ViewportConfig) Viewport() core.Viewport {
	return core.Viewport{Left: v.Left, Top: v.Top, Width: v.Width, Height: v.Height}
}

// FurnitureDef places one point-cloud asset. With Room set, Offset is
// relative to that room's floor center; otherwise it is an absolute (x, z).
type FurnitureDef struct {
	Name      string           `json:"name" yaml:"name"`
	Asset     string           `json:"asset" yaml:"asset"`
	Room      string           `json:"room,omitempty" yaml:"room,omitempty"`
	Offset    [2]float64       `json:"offset" yaml:"offset"`
	Normalize *NormalizeConfig `json:"normalize,omitempty" yaml:"normalize,omitempty"`
}

// Placement resolves the definition against a generated layout.
func (f FurnitureDef) Placement(l *layout.Layout) (mgl64.Vec3, error) {
	x, z := f.Offset[0], f.Offset[1]
	if f.Room != "" {
		room, err := layout.ParseRoomID(f.Room)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("%w: furniture %q: %w", ErrInvalidConfig, f.Name, err)
		}
		floor, ok := l.Floor(room)
		if !ok {
			return mgl64.Vec3{}, fmt.Errorf("%w: furniture %q: no floor for room %s", ErrInvalidConfig, f.Name, room)
		}
		x += floor.Center.X()
		z += floor.Center.Y()
	}
	return mgl64.Vec3{x, 0, z}, nil
}

type Config struct {
	Apartment   layout.ApartmentSpec `json:"apartment" yaml:"apartment"`
	Normalize   NormalizeConfig      `json:"normalize" yaml:"normalize"`
	FloorOffset float64              `json:"floor_offset" yaml:"floor_offset"`
	Camera      CameraConfig         `json:"camera" yaml:"camera"`
	Viewport    ViewportConfig       `json:"viewport" yaml:"viewport"`
	AssetRoot   string               `json:"asset_root" yaml:"asset_root"`
	Furniture   []FurnitureDef       `json:"furniture" yaml:"furniture"`
	Workers     int                  `json:"workers" yaml:"workers"`
	Debug       bool                 `json:"debug" yaml:"debug"`
}

// DefaultConfig is the living-room scene: the reference apartment with four
// furniture pieces and the camera looking into the living room.
func DefaultConfig() Config {
	return Config{
		Apartment: layout.DefaultSpec(),
		Normalize: NormalizeConfig{
			TargetSize:  1.0,
			Origin:      pointcloud.OriginCenter.String(),
			Color:       pointcloud.ColorHeightGradient.String(),
			Orientation: pointcloud.OrientationTrellis.Name,
		},
		FloorOffset: 0.3,
		Camera: CameraConfig{
			Position: [3]float64{0, 4, 12},
			Target:   [3]float64{0, 1, 2.5},
			FovY:     45,
			Near:     0.01,
			Far:      100,
		},
		Viewport:  ViewportConfig{Width: 1280, Height: 720},
		AssetRoot: "models",
		Furniture: []FurnitureDef{
			{Name: "couch", Asset: "couch_test_gaussian.ply", Room: "living", Offset: [2]float64{0, -1.0}},
			{Name: "lounge", Asset: "lounge_test_gaussian.ply", Room: "living", Offset: [2]float64{1.0, -0.2}},
			{Name: "ottoman", Asset: "ottoman_test_gaussian.ply", Room: "living", Offset: [2]float64{0, 0}},
			{Name: "table", Asset: "table_test_gaussian.ply", Room: "living", Offset: [2]float64{0, -0.6}},
		},
		Workers: 2,
	}
}

// LoadConfig reads a .json, .yaml or .yml file. Fields the file omits keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	furniture := cfg.Furniture
	cfg.Furniture = nil
	if ext == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}
	if cfg.Furniture == nil {
		cfg.Furniture = furniture
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Apartment.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Normalize.Options(); err != nil {
		errs = append(errs, fmt.Errorf("normalize: %w", err))
	}
	if c.FloorOffset < 0 {
		errs = append(errs, fmt.Errorf("floor_offset must be non-negative, got %g", c.FloorOffset))
	}
	if !(c.Camera.FovY > 0 && c.Camera.FovY < 180) {
		errs = append(errs, fmt.Errorf("camera fov_y must be in (0, 180), got %g", c.Camera.FovY))
	}
	if !(c.Camera.Near > 0 && c.Camera.Far > c.Camera.Near) {
		errs = append(errs, fmt.Errorf("camera planes must satisfy 0 < near < far, got %g, %g", c.Camera.Near, c.Camera.Far))
	}
	if !(c.Viewport.Width > 0 && c.Viewport.Height > 0) {
		errs = append(errs, fmt.Errorf("viewport must have a positive size, got %gx%g", c.Viewport.Width, c.Viewport.Height))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	for i, f := range c.Furniture {
		if f.Asset == "" {
			errs = append(errs, fmt.Errorf("furniture[%d]: asset is required", i))
		}
		if f.Room != "" {
			if _, err := layout.ParseRoomID(f.Room); err != nil {
				errs = append(errs, fmt.Errorf("furniture[%d]: %w", i, err))
			}
		}
		if f.Normalize != nil {
			if _, err := f.Normalize.Options(); err != nil {
				errs = append(errs, fmt.Errorf("furniture[%d] normalize: %w", i, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AssetLocator joins a furniture asset onto AssetRoot unless it is already
// absolute or a URL.
func (c *Config) AssetLocator(f FurnitureDef) string {
	if c.AssetRoot == "" || filepath.IsAbs(f.Asset) || strings.Contains(f.Asset, "://") {
		return f.Asset
	}
	if strings.Contains(c.AssetRoot, "://") {
		return strings.TrimSuffix(c.AssetRoot, "/") + "/" + f.Asset
	}
	return filepath.Join(c.AssetRoot, f.Asset)
}

// Options returns the normalization options for one furniture piece.
func (c *Config) Options(f FurnitureDef) (pointcloud.Options, error) {
	if f.Normalize != nil {
		return f.Normalize.Options()
	}
	return c.Normalize.Options()
}
