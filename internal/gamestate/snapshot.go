package gamestate

import (
	"sort"
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// RobotSnapshot is one robot's state frozen at snapshot time.
type RobotSnapshot struct {
	Team Team
	ID   RobotID

	Pose       Pose
	LastUpdate time.Time
	Lost       bool

	Waypoints []Waypoint
	Command   CommandState
}

// Snapshot is an immutable copy of the Store taken at a single
// instant. Providers and control loops read snapshots; only batches
// applied by the coordinator mutate the Store between ticks.
type Snapshot struct {
	At time.Time

	GameBegun bool

	BallSeen       bool
	BallPosition   geom.XY
	BallLastUpdate time.Time
	BallLost       bool
	BallVelocity   geom.XY

	Robots []RobotSnapshot
}

// Robot looks up a robot in the snapshot. The second return is false
// if the robot was not tracked when the snapshot was taken.
func (s *Snapshot) Robot(team Team, id RobotID) (RobotSnapshot, bool) {
	for i := range s.Robots {
		if s.Robots[i].Team == team && s.Robots[i].ID == id {
			return s.Robots[i], true
		}
	}
	return RobotSnapshot{}, false
}

// TeamRobots returns the snapshot entries for one team, in id order.
func (s *Snapshot) TeamRobots(team Team) []RobotSnapshot {
	var out []RobotSnapshot
	for i := range s.Robots {
		if s.Robots[i].Team == team {
			out = append(out, s.Robots[i])
		}
	}
	return out
}

// Snapshot freezes the current game state. Each entity is copied under
// its own lock, so the snapshot is internally consistent per entity
// while never holding more than one entity lock at a time.
func (s *Store) Snapshot() *Snapshot {
	now := s.now()
	snap := &Snapshot{At: now, GameBegun: s.GameBegun()}

	if pos, ok := s.BallPosition(); ok {
		snap.BallSeen = true
		snap.BallPosition = pos
		snap.BallLastUpdate, _ = s.BallLastUpdate()
	}
	snap.BallLost = s.IsBallLost()
	snap.BallVelocity = s.BallVelocity()

	s.mu.RLock()
	keys := make([]robotKey, 0, len(s.robots))
	for key := range s.robots {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		rs := RobotSnapshot{Team: key.team, ID: key.id, Lost: true}
		if pose, ok := s.RobotPosition(key.team, key.id); ok {
			rs.Pose = pose
			rs.LastUpdate, _ = s.RobotLastUpdate(key.team, key.id)
			rs.Lost = now.Sub(rs.LastUpdate) > s.cfg.RobotLost
		}
		rs.Waypoints = s.Waypoints(key.team, key.id)
		rs.Command, _ = s.CommandState(key.team, key.id)
		snap.Robots = append(snap.Robots, rs)
	}
	sort.Slice(snap.Robots, func(i, j int) bool {
		a, b := snap.Robots[i], snap.Robots[j]
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.ID < b.ID
	})
	return snap
}
