package deck

// EMU is an English Metric Unit, the native length unit of the OOXML drawing
// format. There are 914400 EMU per inch.
type EMU int64

// EMUPerInch is the EMU-to-inch conversion factor.
const EMUPerInch EMU = 914400

// Inches converts a length in inches to EMU.
func Inches(in float64) EMU {
	return EMU(in * float64(EMUPerInch))
}

// Rect is a shape bounding box in EMU.
type Rect struct {
	Left   EMU
	Top    EMU
	Width  EMU
	Height EMU
}

// IsZero reports whether the rectangle carries no geometry.
func (r Rect) IsZero() bool {
	return r == Rect{}
}
