// Package planner grows rapidly-exploring random trees over the field
// to find obstacle-free waypoint paths for individual robots.
package planner

import (
	"math"
	"math/rand"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// ObstacleFunc reports whether a point is free to occupy.
type ObstacleFunc func(geom.XY) bool

// Planner holds the sampling state for path finding. Not safe for
// concurrent use; each control loop owns its own Planner.
type Planner struct {
	field           *field.Field
	rng             *rand.Rand
	iterationBudget int
	goalBias        float64
}

// New creates a planner over the given field geometry. The seed fixes
// the sampling sequence, which keeps test runs reproducible.
func New(f *field.Field, seed int64) *Planner {
	return &Planner{
		field:           f,
		rng:             rand.New(rand.NewSource(seed)),
		iterationBudget: 1000,
		goalBias:        0.05,
	}
}

// FromConfig creates a planner with budget and bias from the loaded
// configuration.
func FromConfig(f *field.Field, seed int64) *Planner {
	p := New(f, seed)
	if n := viper.GetInt("planner.iterationBudget"); n > 0 {
		p.iterationBudget = n
	}
	if b := viper.GetFloat64("planner.goalBias"); b > 0 {
		p.goalBias = b
	}
	return p
}

// FindPath grows a random tree from start toward goal and returns the
// sequence of intermediate points, start exclusive. Sampling is biased
// toward the goal so short unobstructed runs connect in a handful of
// iterations. The tree is grown on the field's integer millimeter
// grid, so node identity is exact map-key equality.
//
// The search is best effort: if the budget runs out before the goal
// joins the tree, the path leads to the tree node nearest the goal. An
// empty path means no progress was possible at all (start blocked in,
// or start itself is the best node), and the caller should hold
// position rather than move blindly.
func (p *Planner) FindPath(start, goal geom.XY, isOpen ObstacleFunc) []geom.XY {
	adjacent := map[geom.XY][]geom.XY{start: nil}
	prev := make(map[geom.XY]geom.XY)

	for i := 0; i < p.iterationBudget; i++ {
		cand := p.field.RandomPoint(p.rng)
		if p.rng.Float64() < p.goalBias {
			cand = goal
		}
		if isOpen != nil && !isOpen(cand) {
			continue
		}
		if _, seen := adjacent[cand]; seen {
			continue
		}

		nearest := nearestNode(adjacent, cand)
		adjacent[cand] = append(adjacent[cand], nearest)
		adjacent[nearest] = append(adjacent[nearest], cand)
		prev[cand] = nearest

		if cand == goal {
			break
		}
	}

	var path []geom.XY
	for pos := nearestNode(adjacent, goal); pos != start; pos = prev[pos] {
		path = append(path, pos)
	}
	reverse(path)
	return path
}

// PlanWaypoints runs FindPath and dresses the result as waypoints:
// intermediate points face the direction of travel and the final point
// takes the goal heading. Speed bounds are left unset.
func (p *Planner) PlanWaypoints(start gamestate.Pose, goal gamestate.Pose, isOpen ObstacleFunc) []gamestate.Waypoint {
	path := p.FindPath(start.XY, goal.XY, isOpen)
	wps := make([]gamestate.Waypoint, 0, len(path))
	from := start.XY
	for i, pos := range path {
		heading := goal.Heading
		if i < len(path)-1 {
			heading = math.Atan2(pos.Y-from.Y, pos.X-from.X)
		}
		wps = append(wps, gamestate.Waypoint{Pose: gamestate.Pose{XY: pos, Heading: heading}})
		from = pos
	}
	return wps
}

// AvoidRobots builds an obstacle check from a snapshot: a point is
// open when it lies on the field and keeps at least clearance distance
// from every robot except the one being planned for.
func AvoidRobots(f *field.Field, snap *gamestate.Snapshot, team gamestate.Team, id gamestate.RobotID, clearance float64) ObstacleFunc {
	var obstacles []geom.XY
	for _, r := range snap.Robots {
		if r.Team == team && r.ID == id {
			continue
		}
		if r.Lost {
			continue
		}
		obstacles = append(obstacles, r.Pose.XY)
	}
	return func(pt geom.XY) bool {
		if !f.Contains(pt) {
			return false
		}
		for _, o := range obstacles {
			if math.Hypot(pt.X-o.X, pt.Y-o.Y) < clearance {
				return false
			}
		}
		return true
	}
}

func nearestNode(nodes map[geom.XY][]geom.XY, to geom.XY) geom.XY {
	var best geom.XY
	min := math.Inf(1)
	for pos := range nodes {
		d := math.Hypot(to.X-pos.X, to.Y-pos.Y)
		if d < min {
			min = d
			best = pos
		}
	}
	return best
}

func reverse(pts []geom.XY) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
