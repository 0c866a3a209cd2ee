package engine

import (
	iface "ColorDetServer/interface"
	"image"

	"gocv.io/x/gocv"
)

// Preprocess converts a BGR frame into a binary mask of the pixels inside rng.
//
// The frame is blurred into a transient Mat before the HSV conversion, so the
// caller's frame is never touched. The returned mask is single channel with
// values 0 or 255 and has the frame's dimensions; the caller must Close it.
func Preprocess(frame gocv.Mat, rng iface.ColorRange, p Params) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(frame, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, rng.Lower.Scalar(), rng.Upper.Scalar(), &mask)

	// 膨胀 + 闭合
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.MorphKernel, p.MorphKernel))
	defer kernel.Close()
	gocv.Dilate(mask, &mask, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	return mask
}
