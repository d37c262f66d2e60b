// Package layout runs the force-directed placement simulation over
// the note graph. The caller drives stepping: one fixed time step per
// Step call, no internal timers or goroutines.
package layout

import (
	"math"
	"math/rand"

	"github.com/dverna/wisp/internal/graph"
)

// State is the simulation lifecycle.
type State int

const (
	Uninitialized State = iota
	Running
	Converged
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}

// Position is a point in simulation space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config holds the physics parameters. Zero values fall back to the
// defaults; Damping is forced into (0, 1) so the simulation always
// dissipates energy. Connected nodes settle slightly past RestLength:
// repulsion keeps pushing where the spring is at rest, so the
// equilibrium sits where the two forces balance, not at RestLength
// itself.
type Config struct {
	Dt          float64 `yaml:"dt" json:"dt"`
	Damping     float64 `yaml:"damping" json:"damping"`
	Repulsion   float64 `yaml:"repulsion" json:"repulsion"`
	Stiffness   float64 `yaml:"stiffness" json:"stiffness"`
	RestLength  float64 `yaml:"rest_length" json:"rest_length"`
	MinDistance float64 `yaml:"min_distance" json:"min_distance"`
	KEThreshold float64 `yaml:"ke_threshold" json:"ke_threshold"`
	QuietIters  int     `yaml:"quiet_iters" json:"quiet_iters"`
	Seed        int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Dt:          1.0,
		Damping:     0.85,
		Repulsion:   5.0,
		Stiffness:   0.1,
		RestLength:  10.0,
		MinDistance: 1.0,
		KEThreshold: 1e-3,
		QuietIters:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Dt <= 0 {
		c.Dt = d.Dt
	}
	if c.Damping <= 0 || c.Damping >= 1 {
		c.Damping = d.Damping
	}
	if c.Repulsion <= 0 {
		c.Repulsion = d.Repulsion
	}
	if c.Stiffness <= 0 {
		c.Stiffness = d.Stiffness
	}
	if c.RestLength <= 0 {
		c.RestLength = d.RestLength
	}
	if c.MinDistance <= 0 {
		c.MinDistance = d.MinDistance
	}
	if c.KEThreshold <= 0 {
		c.KEThreshold = d.KEThreshold
	}
	if c.QuietIters <= 0 {
		c.QuietIters = d.QuietIters
	}
	return c
}

// Simulator advances node positions toward a stable arrangement.
// It borrows the graph's nodes and never outlives a mutation without
// re-validating: every entry point re-syncs against the graph
// revision first. Not safe for concurrent use.
type Simulator struct {
	cfg     Config
	g       *graph.Graph
	rng     *rand.Rand
	state   State
	iter    int
	ke      float64
	quiet   int
	seenRev uint64
}

// New creates a simulator over g. The seed fixes initial placement,
// so identical graphs and seeds reproduce identical layouts.
func New(g *graph.Graph, cfg Config) *Simulator {
	cfg = cfg.withDefaults()
	return &Simulator{
		cfg: cfg,
		g:   g,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Config returns the effective physics parameters.
func (s *Simulator) Config() Config { return s.cfg }

// State reports the lifecycle state after syncing with the graph.
func (s *Simulator) State() State {
	s.sync()
	return s.state
}

// Iterations returns how many steps have run since creation.
func (s *Simulator) Iterations() int { return s.iter }

// KineticEnergy returns the total of squared node velocities from the
// last step.
func (s *Simulator) KineticEnergy() float64 { return s.ke }

// Perturb re-enters Running after an external position change such as
// a drag, without touching the iteration counter or positions.
func (s *Simulator) Perturb() {
	s.quiet = 0
	if s.state == Converged {
		s.state = Running
	}
}

// Positions returns a copy of every node's current position. Before
// the first step these are the seeded initial placements.
func (s *Simulator) Positions() map[string]Position {
	s.sync()
	nodes := s.g.Nodes()
	out := make(map[string]Position, len(nodes))
	for _, n := range nodes {
		out[n.Identity] = Position{X: n.X, Y: n.Y}
	}
	return out
}

// Step advances the simulation one fixed time step and returns the
// resulting state. Converged simulations are a no-op until the
// topology changes or Perturb is called. Graphs with zero or one node
// short-circuit to Converged.
func (s *Simulator) Step() State {
	s.sync()
	nodes := s.g.Nodes()
	if len(nodes) <= 1 {
		s.state = Converged
		return s.state
	}
	if s.state == Converged {
		return s.state
	}
	s.state = Running

	idx := make(map[*graph.Node]int, len(nodes))
	for i, n := range nodes {
		idx[n] = i
	}
	fx := make([]float64, len(nodes))
	fy := make([]float64, len(nodes))

	// Repulsion: every unordered pair, inverse-square with the
	// distance clamped below by MinDistance.
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			ux, uy, d := direction(a, b, i, j)
			if d < s.cfg.MinDistance {
				d = s.cfg.MinDistance
			}
			f := s.cfg.Repulsion / (d * d)
			fx[i] -= f * ux
			fy[i] -= f * uy
			fx[j] += f * ux
			fy[j] += f * uy
		}
	}

	// Attraction: each edge is a spring with rest length RestLength.
	for _, e := range s.g.EdgeEndpoints() {
		a, b := e[0], e[1]
		i, j := idx[a], idx[b]
		ux, uy, d := direction(a, b, i, j)
		f := s.cfg.Stiffness * (d - s.cfg.RestLength)
		fx[i] += f * ux
		fy[i] += f * uy
		fx[j] -= f * ux
		fy[j] -= f * uy
	}

	// Integrate. Pinned nodes act as force sources but do not move.
	ke := 0.0
	for i, n := range nodes {
		if n.Pinned {
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX = (n.VX + fx[i]*s.cfg.Dt) * s.cfg.Damping
		n.VY = (n.VY + fy[i]*s.cfg.Dt) * s.cfg.Damping
		n.X += n.VX * s.cfg.Dt
		n.Y += n.VY * s.cfg.Dt
		ke += n.VX*n.VX + n.VY*n.VY
	}

	s.separate(nodes)

	s.iter++
	s.ke = ke
	if ke < s.cfg.KEThreshold {
		s.quiet++
		if s.quiet >= s.cfg.QuietIters {
			s.state = Converged
		}
	} else {
		s.quiet = 0
	}
	return s.state
}

// StepN steps up to n times, stopping early on convergence, and
// returns the final state.
func (s *Simulator) StepN(n int) State {
	st := s.State()
	for i := 0; i < n; i++ {
		st = s.Step()
		if st == Converged {
			break
		}
	}
	return st
}

// sync places nodes added since the last call and re-enters Running
// after any structural change.
func (s *Simulator) sync() {
	if s.g.Revision() == s.seenRev {
		return
	}
	s.seenRev = s.g.Revision()
	s.place()
	s.quiet = 0
	if s.state == Converged {
		s.state = Running
	}
}

// place assigns seeded positions to unplaced nodes: a pseudo-random
// point in a disk of radius RestLength around the centroid of already
// placed neighbors, or around the origin when none are placed yet.
// Nodes are visited in insertion order so placement is reproducible.
func (s *Simulator) place() {
	for _, n := range s.g.Nodes() {
		if n.Placed {
			continue
		}
		cx, cy := 0.0, 0.0
		count := 0
		if ids, err := s.g.Neighbors(n.Identity, graph.Both); err == nil {
			for _, id := range ids {
				if nb, ok := s.g.Node(id); ok && nb.Placed {
					cx += nb.X
					cy += nb.Y
					count++
				}
			}
		}
		if count > 0 {
			cx /= float64(count)
			cy /= float64(count)
		}
		r := s.cfg.RestLength * math.Sqrt(s.rng.Float64())
		theta := 2 * math.Pi * s.rng.Float64()
		n.X = cx + r*math.Cos(theta)
		n.Y = cy + r*math.Sin(theta)
		n.VX, n.VY = 0, 0
		n.Placed = true
	}
}

// separate enforces the minimum pairwise distance positionally after
// integration, splitting the correction between both nodes unless one
// is pinned.
func (s *Simulator) separate(nodes []*graph.Node) {
	floor := s.cfg.MinDistance
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			ux, uy, d := direction(a, b, i, j)
			if d >= floor {
				continue
			}
			gap := floor - d
			switch {
			case a.Pinned && b.Pinned:
			case a.Pinned:
				b.X += ux * gap
				b.Y += uy * gap
			case b.Pinned:
				a.X -= ux * gap
				a.Y -= uy * gap
			default:
				a.X -= ux * gap / 2
				a.Y -= uy * gap / 2
				b.X += ux * gap / 2
				b.Y += uy * gap / 2
			}
		}
	}
}

// goldenAngle spreads coincident nodes along reproducible directions.
const goldenAngle = 2.3999632297286533

// direction returns the unit vector from a to b and their distance.
// Exactly coincident nodes get a deterministic direction derived from
// their slice positions so the pair can separate.
func direction(a, b *graph.Node, i, j int) (ux, uy, d float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	d = math.Hypot(dx, dy)
	if d > 0 {
		return dx / d, dy / d, d
	}
	ang := goldenAngle * float64(i*31+j)
	return math.Cos(ang), math.Sin(ang), 0
}
