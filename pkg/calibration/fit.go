// Package calibration fits a straight line through calibration points by
// ordinary least squares.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerate is returned when all measured values are equal and no line
	// through the points is defined.
	ErrDegenerate = errors.New("degenerate calibration: all measured values are equal")
	// ErrTooFewPoints is returned when fewer than two points are supplied.
	ErrTooFewPoints = errors.New("calibration needs at least two points")
)

// degenerateTolerance is the relative size of N*Sx2 - Sx^2 below which the
// measured values are considered identical.
const degenerateTolerance = 1e-12

// Point pairs a measured raw value X with its known reference value Y.
type Point struct {
	X float64
	Y float64
}

// Sums holds the aggregates of a least-squares fit.
type Sums struct {
	N  int
	X  float64
	Y  float64
	X2 float64
	Y2 float64
	XY float64
}

// Accumulate computes the fit aggregates over points.
func Accumulate(points []Point) Sums {
	s := Sums{N: len(points)}
	for _, p := range points {
		s.X += p.X
		s.Y += p.Y
		s.X2 += p.X * p.X
		s.Y2 += p.Y * p.Y
		s.XY += p.X * p.Y
	}
	return s
}

// Line is y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
	// R2 is the coefficient of determination, NaN when the reference values do not vary.
	R2 float64
}

// Apply evaluates the line at x.
func (l Line) Apply(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Fit returns the least-squares line of Y against X.
func Fit(points []Point) (Line, error) {
	if len(points) < 2 {
		return Line{}, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(points))
	}
	return FitSums(Accumulate(points))
}

// FitSums solves the closed-form normal equations from precomputed sums.
func FitSums(s Sums) (Line, error) {
	if s.N < 2 {
		return Line{}, fmt.Errorf("%w: got %d", ErrTooFewPoints, s.N)
	}
	n := float64(s.N)
	den := n*s.X2 - s.X*s.X
	if math.Abs(den) <= degenerateTolerance*math.Abs(n*s.X2) || den == 0 {
		return Line{}, ErrDegenerate
	}

	l := Line{
		Intercept: (s.Y*s.X2 - s.X*s.XY) / den,
		Slope:     (n*s.XY - s.X*s.Y) / den,
		R2:        math.NaN(),
	}

	if yden := n*s.Y2 - s.Y*s.Y; yden > 0 {
		r := (n*s.XY - s.X*s.Y) / math.Sqrt(den*yden)
		l.R2 = r * r
	}
	return l, nil
}
