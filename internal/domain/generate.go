// Domain generators used by the CLI and tests: an equilateral triangle
// lattice for sectional growth, a square-cell grid for clustering and a
// noise-jittered hexagonal point cloud for planar growth.

package domain

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/golang/geo/r3"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/rootsoil/internal/entropy"
	"github.com/talgya/rootsoil/internal/geom"
)

// LatticeConfig holds sectional lattice parameters.
type LatticeConfig struct {
	Width       float64 `yaml:"width"`        // Extent along the plane X axis
	Height      float64 `yaml:"height"`       // Extent along the plane Y axis
	Rows        int     `yaml:"rows"`         // Triangle rows; side length follows from Height/Rows
	SideFillers bool    `yaml:"side_fillers"` // Halve the first and last triangle of each row
}

// DefaultLatticeConfig returns a reasonable sectional domain.
func DefaultLatticeConfig() LatticeConfig {
	return LatticeConfig{
		Width:       20,
		Height:      10,
		Rows:        10,
		SideFillers: true,
	}
}

// SmallTestLattice returns a tiny lattice for rapid iteration.
func SmallTestLattice() LatticeConfig {
	return LatticeConfig{
		Width:       6,
		Height:      4,
		Rows:        4,
		SideFillers: true,
	}
}

// Lattice tessellates the rectangle [0, Width] x [0, Height] of plane into
// rows of alternating up and down equilateral triangles. With SideFillers
// the row ends are right-angle halves so the border is straight; without
// them the overhanging end triangles are dropped.
func Lattice(plane geom.Plane, cfg LatticeConfig) (Domain, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Rows < 1 {
		return Domain{}, fmt.Errorf("lattice %gx%g with %d rows: %w", cfg.Width, cfg.Height, cfg.Rows, ErrOutOfRange)
	}

	h := cfg.Height / float64(cfg.Rows)
	side := h * 2 / math.Sqrt(3)
	nHorizontal := int(cfg.Width / side * 2)
	if nHorizontal < 1 {
		return Domain{}, fmt.Errorf("lattice width %g below one triangle side %g: %w", cfg.Width, side, ErrOutOfRange)
	}

	var cells []geom.Polygon
	for row := 0; row < cfg.Rows; row++ {
		y := float64(row) * h
		// One extra triangle hangs half a side past each end of the row.
		for i := 0; i <= nHorizontal; i++ {
			x := -side/2 + float64(i)*side/2
			up := (row%2+i%2)%2 == 0
			var tri [3][2]float64
			if up {
				tri = [3][2]float64{{x, y}, {x + side, y}, {x + side/2, y + h}}
			} else {
				tri = [3][2]float64{{x, y + h}, {x + side/2, y}, {x + side, y + h}}
			}

			first, last := i == 0, i == nHorizontal
			if first || last {
				if !cfg.SideFillers {
					continue
				}
				halveTriangle(&tri, up, first)
			}

			cell := make(geom.Polygon, 3)
			for k, uv := range tri {
				cell[k] = plane.PointAt(uv[0], uv[1])
			}
			cells = append(cells, cell)
		}
	}
	return NewTessellation(plane, cells)
}

// halveTriangle cuts a row-end triangle along its vertical axis, keeping the
// half that lies inside the rectangle.
func halveTriangle(tri *[3][2]float64, up, first bool) {
	var move float64
	if up {
		move = 0.5 * (tri[1][0] - tri[0][0])
	} else {
		move = 0.5 * (tri[2][0] - tri[0][0])
	}
	switch {
	case first:
		tri[0][0] += move
	case up:
		tri[1][0] -= move
	default:
		tri[2][0] -= move
	}
}

// GridConfig holds square-cell grid parameters.
type GridConfig struct {
	Cols int     `yaml:"cols"`
	Rows int     `yaml:"rows"`
	Size float64 `yaml:"size"` // Cell edge length
}

// DefaultGridConfig returns a 10x10 grid of unit cells.
func DefaultGridConfig() GridConfig {
	return GridConfig{Cols: 10, Rows: 10, Size: 1}
}

// Grid tessellates plane into Cols x Rows square cells starting at the
// plane origin.
func Grid(plane geom.Plane, cfg GridConfig) (Domain, error) {
	if cfg.Cols < 0 || cfg.Rows < 0 || cfg.Size <= 0 {
		return Domain{}, fmt.Errorf("grid %dx%d of size %g: %w", cfg.Cols, cfg.Rows, cfg.Size, ErrOutOfRange)
	}
	cells := make([]geom.Polygon, 0, cfg.Cols*cfg.Rows)
	s := cfg.Size
	for r := 0; r < cfg.Rows; r++ {
		for c := 0; c < cfg.Cols; c++ {
			x, y := float64(c)*s, float64(r)*s
			cells = append(cells, geom.Polygon{
				plane.PointAt(x, y),
				plane.PointAt(x+s, y),
				plane.PointAt(x+s, y+s),
				plane.PointAt(x, y+s),
			})
		}
	}
	return NewTessellation(plane, cells)
}

// CloudConfig holds jittered point cloud parameters.
type CloudConfig struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Spacing   float64 `yaml:"spacing"`   // Base hexagonal spacing
	Jitter    float64 `yaml:"jitter"`    // Maximum displacement as a fraction of Spacing (0.0–0.5)
	Octaves   int     `yaml:"octaves"`   // Noise octaves
	Frequency float64 `yaml:"frequency"` // Base noise frequency
	Falloff   float64 `yaml:"falloff"`   // Amplitude ratio between successive octaves
	Seed      int64   `yaml:"seed"`      // Negative draws a random seed
}

// DefaultCloudConfig returns a reasonable planar domain.
func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		Width:     40,
		Height:    40,
		Spacing:   0.5,
		Jitter:    0.3,
		Octaves:   3,
		Frequency: 0.35,
		Falloff:   0.5,
		Seed:      -1,
	}
}

// Cloud places points on a hexagonal arrangement centred on the plane
// origin and displaces each by two independent octave-noise fields.
// A negative seed is drawn from crypto/rand; the seed used is reported by
// Domain.Seed.
func Cloud(plane geom.Plane, cfg CloudConfig) (Domain, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Spacing <= 0 || cfg.Jitter < 0 || cfg.Jitter > 0.5 ||
		cfg.Octaves < 1 || cfg.Falloff <= 0 || cfg.Falloff > 1 {
		return Domain{}, fmt.Errorf("cloud %+v: %w", cfg, ErrOutOfRange)
	}
	seed := cfg.Seed
	if seed < 0 {
		seed = entropy.CryptoSeed()
	}

	// Independent layers for the two displacement axes.
	dxNoise := opensimplex.NewNormalized(seed)
	dyNoise := opensimplex.NewNormalized(seed + 1)

	rowH := cfg.Spacing * math.Sqrt(3.0) / 2.0
	rows := int(cfg.Height / rowH)
	cols := int(cfg.Width / cfg.Spacing)
	x0, y0 := -cfg.Width/2, -cfg.Height/2

	pts := make([]r3.Vector, 0, (rows+1)*(cols+1))
	for r := 0; r <= rows; r++ {
		for q := 0; q <= cols; q++ {
			// Odd rows shift half a spacing, as in axial hex layout.
			x := float64(q)*cfg.Spacing + float64(r%2)*cfg.Spacing*0.5
			y := float64(r) * rowH
			if x > cfg.Width {
				continue
			}

			dx := (jitterNoise(dxNoise, x, y, cfg)*2 - 1) * cfg.Jitter * cfg.Spacing
			dy := (jitterNoise(dyNoise, x, y, cfg)*2 - 1) * cfg.Jitter * cfg.Spacing
			pts = append(pts, plane.PointAt(x0+x+dx, y0+y+dy))
		}
	}
	d, err := NewPointCloud(plane, pts)
	if err != nil {
		return Domain{}, err
	}
	d.seed = seed
	slog.Debug("point cloud generated", "points", len(pts), "seed", seed)
	return d, nil
}

// jitterNoise sums cfg.Octaves layers of normalized noise at (x, y), each
// at twice the frequency and Falloff times the amplitude of the last. The
// result stays in [0, 1].
func jitterNoise(noise opensimplex.Noise, x, y float64, cfg CloudConfig) float64 {
	sum, norm := 0.0, 0.0
	freq, amp := cfg.Frequency, 1.0
	for range cfg.Octaves {
		sum += amp * noise.Eval2(x*freq, y*freq)
		norm += amp
		freq *= 2
		amp *= cfg.Falloff
	}
	return sum / norm
}
