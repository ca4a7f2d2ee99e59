package terrain

import "fmt"

// Category is one of the four terrain surface classes.
type Category uint8

const (
	// Opaque surfaces are depth tested and written, never blended.
	Opaque Category = iota

	// AlphaMipped surfaces discard texels with alpha below 0.5 and sample
	// the mip-mapped atlas.
	AlphaMipped

	// AlphaSharp surfaces discard texels with alpha below 0.1 and sample
	// the atlas base level with nearest filtering.
	AlphaSharp

	// Translucent surfaces are depth tested without depth writes and blended
	// source-over.
	Translucent
)

// NumCategories is the number of render categories.
const NumCategories = 4

var categoryNames = [NumCategories]string{"opaque", "alpha_mipped", "alpha_sharp", "translucent"}

var alphaThresholds = [NumCategories]float32{0, 0.5, 0.1, 0}

// Categories returns the categories in render order.
func Categories() []Category {
	return []Category{Opaque, AlphaMipped, AlphaSharp, Translucent}
}

// Valid reports whether c names a known category.
func (c Category) Valid() bool { return c < NumCategories }

// String returns the category name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// AlphaThreshold returns the default alpha-test threshold of the category.
// Zero disables the test.
func (c Category) AlphaThreshold() float32 {
	if !c.Valid() {
		return 0
	}
	return alphaThresholds[c]
}

// DepthWrite reports whether the category writes depth.
func (c Category) DepthWrite() bool { return c != Translucent }

// Blended reports whether the category uses source-over blending.
func (c Category) Blended() bool { return c == Translucent }

// NearestSampling reports whether the category samples the atlas base level
// with nearest filtering instead of the linear mip chain.
func (c Category) NearestSampling() bool { return c == AlphaSharp }

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}
