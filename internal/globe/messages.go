package globe

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/picking"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/selection"
)

// Pointer event types.
const (
	PointerMove  = "move"
	PointerClick = "click"
)

// CameraInput is the viewer's camera at the time of a pointer event.
type CameraInput struct {
	Position [3]float64 `json:"position"`
	Target   [3]float64 `json:"target"`
	FovYDeg  float64    `json:"fov,omitempty"`
}

// PointerInput is one pointer event from a viewer.
type PointerInput struct {
	Type    string       `json:"type"`
	ClientX float64      `json:"client_x"`
	ClientY float64      `json:"client_y"`
	Rect    picking.Rect `json:"rect"`
	Camera  *CameraInput `json:"camera,omitempty"`
}

// Validate checks the event type and the surface rectangle.
func (p PointerInput) Validate() error {
	if p.Type != PointerMove && p.Type != PointerClick {
		return fmt.Errorf("invalid pointer type %q, must be %q or %q", p.Type, PointerMove, PointerClick)
	}
	if p.Rect.Width <= 0 || p.Rect.Height <= 0 {
		return errors.New("rect width and height must be positive")
	}
	if c := p.Camera; c != nil {
		if c.FovYDeg < 0 || c.FovYDeg >= 180 {
			return fmt.Errorf("invalid camera fov %v", c.FovYDeg)
		}
		if c.Position == c.Target {
			return errors.New("camera position and target must differ")
		}
	}
	return nil
}

// camera builds the picking camera. Without a camera in the event the
// startup view is used.
func (p PointerInput) camera() scene.Camera {
	cam := scene.DefaultCamera(p.Rect.Width / p.Rect.Height)
	if c := p.Camera; c != nil {
		cam.Position = mgl64.Vec3(c.Position)
		cam.Target = mgl64.Vec3(c.Target)
		if c.FovYDeg > 0 {
			cam.FovYDeg = c.FovYDeg
		}
	}
	return cam
}

// StaticMessage carries geometry that never changes (globe and outlines)
// and describes the identifier pool the swarm was sampled from.
type StaticMessage struct {
	Type        string           `json:"type"`
	GlobeRadius float64          `json:"globe_radius"`
	PoolSource  string           `json:"pool_source,omitempty"`
	PoolSize    int              `json:"pool_size,omitempty"`
	PoolAge     int              `json:"pool_age_seconds,omitempty"`
	Nodes       []scene.NodeView `json:"nodes"`
}

// FrameMessage carries the dynamic layer for one frame.
type FrameMessage struct {
	Type     string           `json:"type"`
	Frame    uint64           `json:"frame"`
	T        string           `json:"t"`
	Hovered  int              `json:"hovered,omitempty"`
	Selected int              `json:"selected,omitempty"`
	Nodes    []scene.NodeView `json:"nodes"`
}

// SceneMessage is the full scene returned by the snapshot endpoint.
type SceneMessage struct {
	Static StaticMessage  `json:"static"`
	Frame  FrameMessage   `json:"frame"`
	Card   selection.Card `json:"card"`
}

// SatelliteView is the diagnostic view of one entity.
type SatelliteView struct {
	NORADID       int        `json:"norad_id"`
	Current       [3]float64 `json:"current"`
	Target        [3]float64 `json:"target"`
	HasSample     bool       `json:"has_sample"`
	Lat           float64    `json:"lat,omitempty"`
	Lon           float64    `json:"lon,omitempty"`
	AltKm         float64    `json:"alt_km,omitempty"`
	SampledAt     string     `json:"sampled_at,omitempty"`
	Hovered       bool       `json:"hovered"`
	Selected      bool       `json:"selected"`
	OrbitSegments int        `json:"orbit_segments"`
}
