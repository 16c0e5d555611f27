package geom

import "github.com/go-gl/mathgl/mgl64"

// The constraint solver inverts small effective-mass matrices every
// iteration. These helpers mirror mgl64's matrix types but treat a singular
// matrix as "apply no impulse" (zero result) rather than producing NaNs.

// Solve22 solves A*x = b for a 2x2 matrix, returning zero when A is
// singular.
func Solve22(a mgl64.Mat2, b Vec2) Vec2 {
	a11, a21 := a.At(0, 0), a.At(1, 0)
	a12, a22 := a.At(0, 1), a.At(1, 1)
	det := a11*a22 - a12*a21
	if det != 0.0 {
		det = 1.0 / det
	}
	return Vec2{
		det * (a22*b[0] - a12*b[1]),
		det * (a11*b[1] - a21*b[0]),
	}
}

// Inverse22 returns the inverse of a 2x2 matrix, or the zero matrix when
// singular.
func Inverse22(a mgl64.Mat2) mgl64.Mat2 {
	a11, a21 := a.At(0, 0), a.At(1, 0)
	a12, a22 := a.At(0, 1), a.At(1, 1)
	det := a11*a22 - a12*a21
	if det != 0.0 {
		det = 1.0 / det
	}
	return Mat2FromCols(
		Vec2{det * a22, -det * a21},
		Vec2{-det * a12, det * a11},
	)
}

// Mat2FromCols builds a 2x2 matrix from column vectors.
func Mat2FromCols(ex, ey Vec2) mgl64.Mat2 {
	return mgl64.Mat2{ex[0], ex[1], ey[0], ey[1]}
}

// Mat3FromCols builds a 3x3 matrix from column vectors.
func Mat3FromCols(ex, ey, ez mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		ex[0], ex[1], ex[2],
		ey[0], ey[1], ey[2],
		ez[0], ez[1], ez[2],
	}
}

// Solve33 solves A*x = b for a 3x3 matrix, returning zero when A is
// singular.
func Solve33(a mgl64.Mat3, b mgl64.Vec3) mgl64.Vec3 {
	ex, ey, ez := a.Col(0), a.Col(1), a.Col(2)
	det := ex.Dot(ey.Cross(ez))
	if det != 0.0 {
		det = 1.0 / det
	}
	return mgl64.Vec3{
		det * b.Dot(ey.Cross(ez)),
		det * ex.Dot(b.Cross(ez)),
		det * ex.Dot(ey.Cross(b)),
	}
}

// Solve22Of33 solves the upper-left 2x2 block of a 3x3 matrix against a 2D
// right-hand side, returning zero when that block is singular.
func Solve22Of33(a mgl64.Mat3, b Vec2) Vec2 {
	a11, a21 := a.At(0, 0), a.At(1, 0)
	a12, a22 := a.At(0, 1), a.At(1, 1)
	det := a11*a22 - a12*a21
	if det != 0.0 {
		det = 1.0 / det
	}
	return Vec2{
		det * (a22*b[0] - a12*b[1]),
		det * (a11*b[1] - a21*b[0]),
	}
}

// Inverse22Of33 inverts the upper-left 2x2 block of a 3x3 matrix, leaving
// the third row and column zero. A singular block yields the zero matrix.
func Inverse22Of33(a mgl64.Mat3) mgl64.Mat3 {
	a11, a21 := a.At(0, 0), a.At(1, 0)
	a12, a22 := a.At(0, 1), a.At(1, 1)
	det := a11*a22 - a12*a21
	if det != 0.0 {
		det = 1.0 / det
	}
	return Mat3FromCols(
		mgl64.Vec3{det * a22, -det * a21, 0.0},
		mgl64.Vec3{-det * a12, det * a11, 0.0},
		mgl64.Vec3{},
	)
}

// SymInverse33 returns the inverse of a symmetric 3x3 matrix, or the zero
// matrix when singular.
func SymInverse33(a mgl64.Mat3) mgl64.Mat3 {
	ex, ey, ez := a.Col(0), a.Col(1), a.Col(2)
	det := ex.Dot(ey.Cross(ez))
	if det != 0.0 {
		det = 1.0 / det
	}

	a11, a12, a13 := ex[0], ey[0], ez[0]
	a22, a23 := ey[1], ez[1]
	a33 := ez[2]

	m11 := det * (a22*a33 - a23*a23)
	m12 := det * (a13*a23 - a12*a33)
	m13 := det * (a12*a23 - a13*a22)
	m22 := det * (a11*a33 - a13*a13)
	m23 := det * (a13*a12 - a11*a23)
	m33 := det * (a11*a22 - a12*a12)

	return Mat3FromCols(
		mgl64.Vec3{m11, m12, m13},
		mgl64.Vec3{m12, m22, m23},
		mgl64.Vec3{m13, m23, m33},
	)
}
