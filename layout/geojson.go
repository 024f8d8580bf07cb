package layout

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Plan coordinates map world x to orb X and world z to orb Y.

func rect(cx, cz, width, depth float64) orb.Polygon {
	hw, hd := width/2, depth/2
	ring := orb.Ring{
		{cx - hw, cz - hd},
		{cx + hw, cz - hd},
		{cx + hw, cz + hd},
		{cx - hw, cz + hd},
		{cx - hw, cz - hd},
	}
	return orb.Polygon{ring}
}

// Footprint is the floor outline in plan coordinates.
func (f FloorPanel) Footprint() orb.Polygon {
	return rect(f.Center.X(), f.Center.Y(), f.Width, f.Depth)
}

// Footprint is the rectangle the segment covers on the floor.
func (w WallSegment) Footprint() orb.Polygon {
	if w.Orientation == Horizontal {
		return rect(w.Center.X(), w.Center.Y(), w.Length, w.Thickness)
	}
	return rect(w.Center.X(), w.Center.Y(), w.Thickness, w.Length)
}

// Line is the doorway opening along its wall's run axis.
func (d Doorway) Line() orb.LineString {
	lo, hi := d.Span()
	if d.Orientation == Horizontal {
		return orb.LineString{{lo, d.Center.Y()}, {hi, d.Center.Y()}}
	}
	return orb.LineString{{d.Center.X(), lo}, {d.Center.X(), hi}}
}

// FloorArea is the summed area of all room floors.
func (l *Layout) FloorArea() float64 {
	var total float64
	for _, f := range l.Floors {
		total += math.Abs(planar.Area(f.Footprint()))
	}
	return total
}

// FeatureCollection exports the plan for 2D tools: one polygon per floor and
// wall segment and one line per doorway.
func (l *Layout) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Floors {
		feat := geojson.NewFeature(f.Footprint())
		feat.Properties["kind"] = "floor"
		feat.Properties["room"] = f.Room.String()
		feat.Properties["color"] = f.Color.RGB()
		fc.Append(feat)
	}
	for _, w := range l.Walls {
		feat := geojson.NewFeature(w.Footprint())
		feat.Properties["kind"] = "wall"
		feat.Properties["wall"] = w.Wall.String()
		feat.Properties["height"] = w.Height
		fc.Append(feat)
	}
	for _, d := range l.Doorways {
		feat := geojson.NewFeature(d.Line())
		feat.Properties["kind"] = "doorway"
		feat.Properties["wall"] = d.Wall.String()
		feat.Properties["width"] = d.Width
		fc.Append(feat)
	}
	return fc
}
