package lidar

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dbh.report/internal/monitoring"
)

// CircleModel is a circle in the horizontal plane. Values are produced by
// FitCircle; callers do not set them independently.
type CircleModel struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

// Center returns the circle center.
func (m CircleModel) Center() Point2D {
	return Point2D{X: m.CenterX, Y: m.CenterY}
}

// DBH returns the stem diameter, 2 × Radius.
func (m CircleModel) DBH() float64 {
	return 2 * m.Radius
}

// Solver limits on the damping parameter and on the diagonal used to scale it.
const (
	minDamping  = 1e-15
	maxDamping  = 1e16
	minDiagonal = 1e-15
)

// FitOptions controls the Levenberg–Marquardt circle fit.
type FitOptions struct {
	// MaxIterations bounds the number of trial steps.
	MaxIterations int

	// FunctionTolerance stops the solver once an accepted step reduces the
	// cost by less than this fraction of the previous cost.
	FunctionTolerance float64

	// ParameterTolerance stops the solver once a step is smaller than
	// tol*(tol+|params|).
	ParameterTolerance float64

	// Damping schedule: InitialDamping is multiplied by DampingIncrease on a
	// rejected step and divided by DampingDecrease on an accepted one.
	InitialDamping  float64
	DampingIncrease float64
	DampingDecrease float64

	// CollinearityTolerance rejects point sets whose minor covariance
	// eigenvalue is below this fraction of the major one.
	CollinearityTolerance float64

	// RetryPerturbed retries a failed fit once from a shifted initial guess.
	RetryPerturbed bool

	// Verbose logs solver diagnostics on success.
	Verbose bool
}

// DefaultFitOptions returns the solver settings used by the dbh command.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxIterations:         100,
		FunctionTolerance:     1e-8,
		ParameterTolerance:    1e-8,
		InitialDamping:        1e-3,
		DampingIncrease:       10,
		DampingDecrease:       10,
		CollinearityTolerance: 1e-9,
	}
}

// Validate checks the options for values the solver cannot work with.
func (o FitOptions) Validate() error {
	if o.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	if !(o.FunctionTolerance > 0) || !(o.ParameterTolerance > 0) {
		return fmt.Errorf("tolerances must be positive, got function=%g parameter=%g", o.FunctionTolerance, o.ParameterTolerance)
	}
	if !(o.InitialDamping > 0) {
		return fmt.Errorf("initial damping must be positive, got %g", o.InitialDamping)
	}
	if !(o.DampingIncrease > 1) || !(o.DampingDecrease > 1) {
		return fmt.Errorf("damping factors must exceed 1, got increase=%g decrease=%g", o.DampingIncrease, o.DampingDecrease)
	}
	if o.CollinearityTolerance < 0 {
		return fmt.Errorf("collinearity tolerance must be non-negative, got %g", o.CollinearityTolerance)
	}
	return nil
}

// CircleFit is the outcome of a successful FitCircle call.
type CircleFit struct {
	Model   CircleModel
	Initial CircleModel

	Iterations int
	// Cost is the sum of squared algebraic residuals at Model.
	Cost float64
	// RMSResidual is the root mean square of |distance to center| - Radius.
	RMSResidual float64
	// Retried is set when the fit only converged from the perturbed guess.
	Retried bool
}

// InitialGuess returns the solver starting point: the centroid of the
// points and the mean distance from it.
func InitialGuess(points []Point2D) CircleModel {
	xs, ys := splitXY(points)
	cx := stat.Mean(xs, nil)
	cy := stat.Mean(ys, nil)

	dists := make([]float64, len(points))
	for i := range points {
		dists[i] = math.Hypot(xs[i]-cx, ys[i]-cy)
	}
	return CircleModel{CenterX: cx, CenterY: cy, Radius: stat.Mean(dists, nil)}
}

// CircleResiduals writes the algebraic residual
// (x-xc)² + (y-yc)² - r² of every point into dst, growing it if needed.
func CircleResiduals(m CircleModel, points []Point2D, dst []float64) []float64 {
	if cap(dst) < len(points) {
		dst = make([]float64, len(points))
	}
	dst = dst[:len(points)]

	r2 := m.Radius * m.Radius
	for i, p := range points {
		dx := p.X - m.CenterX
		dy := p.Y - m.CenterY
		dst[i] = dx*dx + dy*dy - r2
	}
	return dst
}

// circleJacobian fills jac (n×3) with the partial derivatives of the
// residuals with respect to (xc, yc, r).
func circleJacobian(m CircleModel, points []Point2D, jac *mat.Dense) {
	for i, p := range points {
		jac.Set(i, 0, -2*(p.X-m.CenterX))
		jac.Set(i, 1, -2*(p.Y-m.CenterY))
		jac.Set(i, 2, -2*m.Radius)
	}
}

// FitCircle fits a circle to points by minimizing the sum of squared
// algebraic residuals with a Levenberg–Marquardt solver started from
// InitialGuess. At least three non-collinear finite points are required.
// Every failure, including a non-positive or non-finite radius, is a
// *FitError wrapping ErrFitConvergence.
func FitCircle(points []Point2D, opts FitOptions) (*CircleFit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := checkFitInput(points, opts.CollinearityTolerance); err != nil {
		return nil, err
	}

	initial := InitialGuess(points)

	// Residuals are translation invariant, so the solver works relative to
	// the centroid to keep survey-grid coordinates well conditioned.
	origin := initial.Center()
	local := make([]Point2D, len(points))
	for i, p := range points {
		local[i] = Point2D{X: p.X - origin.X, Y: p.Y - origin.Y}
	}
	guess := CircleModel{Radius: initial.Radius}

	fit, err := solveCircle(local, guess, opts)
	retried := false
	if err != nil && opts.RetryPerturbed {
		var fitErr *FitError
		if errors.As(err, &fitErr) {
			monitoring.Logf("circle fit failed (%v); retrying from perturbed guess", err)
			fit, err = solveCircle(local, perturbGuess(guess), opts)
			retried = true
		}
	}
	if err != nil {
		return nil, err
	}

	r := fit.Model.Radius
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return nil, &FitError{
			Reason:     fmt.Sprintf("fitted radius %g is not positive and finite", r),
			Iterations: fit.Iterations,
			Cost:       fit.Cost,
		}
	}

	fit.Model.CenterX += origin.X
	fit.Model.CenterY += origin.Y
	fit.Initial = initial
	fit.Retried = retried
	fit.RMSResidual = geometricRMS(fit.Model, points)

	if opts.Verbose {
		monitoring.Logf("circle fit converged after %d iterations: center=(%.4f, %.4f) radius=%.5f m cost=%.3g rms=%.5f m",
			fit.Iterations, fit.Model.CenterX, fit.Model.CenterY, fit.Model.Radius, fit.Cost, fit.RMSResidual)
	}
	return fit, nil
}

// solveCircle runs one solver attempt from a starting guess. Tests replace it
// to force a first-attempt failure.
var solveCircle = levenbergMarquardt

// levenbergMarquardt minimizes the algebraic circle cost from guess. Each
// iteration solves (JᵀJ + λ·diag(JᵀJ)) δ = -Jᵀr and accepts the step only
// if it lowers the cost.
func levenbergMarquardt(points []Point2D, guess CircleModel, opts FitOptions) (*CircleFit, error) {
	n := len(points)
	params := []float64{guess.CenterX, guess.CenterY, guess.Radius}
	trial := make([]float64, 3)
	toModel := func(p []float64) CircleModel {
		return CircleModel{CenterX: p[0], CenterY: p[1], Radius: p[2]}
	}

	res := CircleResiduals(guess, points, nil)
	trialRes := make([]float64, n)
	cost := floats.Dot(res, res)
	lambda := opts.InitialDamping

	jac := mat.NewDense(n, 3, nil)
	damped := mat.NewSymDense(3, nil)
	var (
		jtj      mat.SymDense
		grad     mat.VecDense
		negGrad  mat.VecDense
		step     mat.VecDense
		chol     mat.Cholesky
		stale    = true
		finished = func(iter int) *CircleFit {
			return &CircleFit{Model: toModel(params), Iterations: iter, Cost: cost}
		}
	)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if cost == 0 {
			return finished(iter - 1), nil
		}

		if stale {
			circleJacobian(toModel(params), points, jac)
			jtj.SymOuterK(1, jac.T())
			grad.MulVec(jac.T(), mat.NewVecDense(n, res))
			stale = false
			if mat.Norm(&grad, math.Inf(1)) == 0 {
				return finished(iter - 1), nil
			}
		}

		damped.CopySym(&jtj)
		for i := 0; i < 3; i++ {
			d := math.Max(jtj.At(i, i), minDiagonal)
			damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
		}

		solved := chol.Factorize(damped)
		if solved {
			negGrad.ScaleVec(-1, &grad)
			solved = chol.SolveVecTo(&step, &negGrad) == nil
		}
		if !solved {
			lambda *= opts.DampingIncrease
			if lambda > maxDamping {
				return nil, &FitError{Reason: "damped normal equations are singular", Iterations: iter, Cost: cost}
			}
			continue
		}

		for i := range params {
			trial[i] = params[i] + step.AtVec(i)
		}
		trialRes = CircleResiduals(toModel(trial), points, trialRes)
		trialCost := floats.Dot(trialRes, trialRes)

		stepNorm := mat.Norm(&step, 2)
		tiny := stepNorm <= opts.ParameterTolerance*(opts.ParameterTolerance+floats.Norm(params, 2))

		if !math.IsNaN(trialCost) && !math.IsInf(trialCost, 0) && trialCost < cost {
			reduction := cost - trialCost
			prevCost := cost
			copy(params, trial)
			res, trialRes = trialRes, res
			cost = trialCost
			stale = true
			lambda = math.Max(lambda/opts.DampingDecrease, minDamping)

			if tiny || reduction <= opts.FunctionTolerance*prevCost {
				return finished(iter), nil
			}
			continue
		}

		// A rejected step this small means no representable improvement is left.
		if tiny {
			return finished(iter), nil
		}
		lambda *= opts.DampingIncrease
		if lambda > maxDamping {
			return nil, &FitError{Reason: "damping exceeded limit without reducing cost", Iterations: iter, Cost: cost}
		}
	}

	return nil, &FitError{
		Reason:     fmt.Sprintf("no convergence within %d iterations", opts.MaxIterations),
		Iterations: opts.MaxIterations,
		Cost:       cost,
	}
}

// checkFitInput rejects point sets that cannot define a circle.
func checkFitInput(points []Point2D, collinearityTol float64) error {
	if len(points) < 3 {
		return &FitError{Reason: fmt.Sprintf("need at least 3 points, got %d", len(points))}
	}
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return &FitError{Reason: fmt.Sprintf("non-finite coordinate at point %d", i)}
		}
	}

	xs, ys := splitXY(points)
	mx := stat.Mean(xs, nil)
	my := stat.Mean(ys, nil)
	var sxx, sxy, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), false) {
		return &FitError{Reason: "point spread eigen-decomposition failed"}
	}
	vals := eig.Values(nil)
	major, minor := floats.Max(vals), floats.Min(vals)
	if major <= 0 || minor <= collinearityTol*major {
		return &FitError{Reason: "points are collinear"}
	}
	return nil
}

func perturbGuess(g CircleModel) CircleModel {
	return CircleModel{
		CenterX: g.CenterX + 0.5*g.Radius,
		CenterY: g.CenterY,
		Radius:  1.1 * g.Radius,
	}
}

func geometricRMS(m CircleModel, points []Point2D) float64 {
	var sum float64
	for _, p := range points {
		d := math.Hypot(p.X-m.CenterX, p.Y-m.CenterY) - m.Radius
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(points)))
}

func splitXY(points []Point2D) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
