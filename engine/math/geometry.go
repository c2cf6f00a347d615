package math

// QuadCorners returns the four corners of a rectangle of the given full size
// centered on center, ordered top-left, top-right, bottom-left, bottom-right in
// screen space (y down). This is the triangle strip order of a quad.
//
// rotation rotates the corner directions around the center, in radians.
// Opposite corners always satisfy c[i] + c[3-i] == 2*center.
func QuadCorners(center, size Vec2, rotation float32) [4]Vec2 {
	half := size.MulScalar(0.5)
	angle := katan2(half.Y, half.X)
	radius := half.Length()

	plus := angle + rotation
	minus := angle - rotation

	return [4]Vec2{
		{center.X - kcos(plus)*radius, center.Y - ksin(plus)*radius},
		{center.X + kcos(minus)*radius, center.Y - ksin(minus)*radius},
		{center.X - kcos(minus)*radius, center.Y + ksin(minus)*radius},
		{center.X + kcos(plus)*radius, center.Y + ksin(plus)*radius},
	}
}

// QuadTexcoords returns the texture coordinates of the same corners for the
// sub-rectangle starting at origin with the given size.
func QuadTexcoords(origin, size Vec2) [4]Vec2 {
	return [4]Vec2{
		origin,
		{origin.X + size.X, origin.Y},
		{origin.X, origin.Y + size.Y},
		origin.Add(size),
	}
}
