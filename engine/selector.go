package engine

import (
	iface "ColorDetServer/interface"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Candidate is a contour that passed the size and shape filter.
type Candidate struct {
	Index int // position in extraction order
	Box   iface.BoundingBox
	Area  float64
}

// SelectBest reduces candidates to the one with the strictly largest area.
// On equal areas the earlier candidate wins. Zero-area candidates never win.
func SelectBest(cands []Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	maxArea := 0.0
	for _, c := range cands {
		if c.Area > maxArea {
			maxArea = c.Area
			best = c
			found = true
		}
	}
	return best, found
}

// ExtractContours returns the outer boundaries of mask in extraction order.
func ExtractContours(mask gocv.Mat) [][]image.Point {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	return contours.ToPoints()
}

// SelectAndAnnotate picks the largest near-square blob of mask and draws its
// bounding box and label onto display. It returns nil, leaving display
// untouched, when no contour qualifies.
//
// mask and display must have the same dimensions; a mismatch is a programming
// error and panics.
func SelectAndAnnotate(mask gocv.Mat, display *gocv.Mat, label string, p Params) *iface.Detection {
	if mask.Rows() != display.Rows() || mask.Cols() != display.Cols() {
		panic(fmt.Sprintf("mask %dx%d does not match display %dx%d",
			mask.Cols(), mask.Rows(), display.Cols(), display.Rows()))
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	cands := make([]Candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		box := iface.BoxFromRect(gocv.BoundingRect(contour))
		if !p.Qualifies(box) {
			continue
		}
		cands = append(cands, Candidate{Index: i, Box: box, Area: gocv.ContourArea(contour)})
	}

	best, ok := SelectBest(cands)
	if !ok {
		return nil
	}

	// 轮廓平滑，只对最终选中的轮廓做
	winner := contours.At(best.Index)
	peri := gocv.ArcLength(winner, true)
	approx := gocv.ApproxPolyDP(winner, p.ApproxEpsilon*peri, true)
	polygon := approx.ToPoints()
	approx.Close()

	gocv.Rectangle(display, best.Box.Rect(), AnnotationColor, p.BoxThickness)
	gocv.PutText(display, label, image.Pt(best.Box.X, best.Box.Y-p.LabelOffset),
		gocv.FontHersheyDuplex, p.FontScale, AnnotationColor, p.FontThickness)

	return &iface.Detection{
		Box:     best.Box,
		Label:   label,
		Area:    best.Area,
		Center:  best.Box.Center(),
		Polygon: polygon,
	}
}
