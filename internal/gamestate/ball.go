package gamestate

import (
	"math"
	"sync"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rfccambridge/robocup-prototype/internal/series"
)

// ballTrack holds the ball's observation history plus the last
// successfully estimated velocity. The cached velocity is what keeps
// prediction stable across vision dropouts and duplicate frames.
type ballTrack struct {
	mu        sync.Mutex
	positions *series.Timed[geom.XY]
	velocity  geom.XY
}

func newBallTrack(history int) *ballTrack {
	return &ballTrack{positions: series.New[geom.XY](history)}
}

// UpdateBallPosition inserts a fresh ball observation.
func (s *Store) UpdateBallPosition(p geom.XY) {
	s.ball.mu.Lock()
	s.ball.positions.PushAt(s.now(), p)
	s.ball.mu.Unlock()
}

// BallPosition returns the most recent observed ball position. The
// second return is false if the ball has never been seen.
func (s *Store) BallPosition() (geom.XY, bool) {
	s.ball.mu.Lock()
	defer s.ball.mu.Unlock()
	smp, ok := s.ball.positions.Newest()
	if !ok {
		return geom.XY{}, false
	}
	return smp.Value, true
}

// BallLastUpdate returns the timestamp of the latest ball observation.
func (s *Store) BallLastUpdate() (time.Time, bool) {
	s.ball.mu.Lock()
	defer s.ball.mu.Unlock()
	smp, ok := s.ball.positions.Newest()
	if !ok {
		return time.Time{}, false
	}
	return smp.At, true
}

// IsBallLost reports whether the ball has never been observed or its
// last observation is older than the ball lost threshold.
func (s *Store) IsBallLost() bool {
	last, ok := s.BallLastUpdate()
	if !ok {
		return true
	}
	return s.now().Sub(last) > s.cfg.BallLost
}

// BallVelocity estimates the ball velocity in mm/s by finite
// difference between the newest sample and the oldest sample within
// the velocity window (or the oldest sample available when the whole
// history is younger than the window). With fewer than two samples, or
// a zero time delta between the chosen pair, the previous estimate is
// returned unchanged rather than a spurious zero or an infinity.
func (s *Store) BallVelocity() geom.XY {
	b := s.ball
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.positions.Len() < 2 {
		return b.velocity
	}
	newest := b.positions.At(0)
	i := 1
	for i < b.positions.Len()-1 && newest.At.Sub(b.positions.At(i).At) < s.cfg.VelocityWindow {
		i++
	}
	oldest := b.positions.At(i)
	dt := newest.At.Sub(oldest.At).Seconds()
	if dt <= 0 {
		return b.velocity
	}
	b.velocity = newest.Value.Sub(oldest.Value).Scale(1 / dt)
	return b.velocity
}

// PredictBallPosition extrapolates the ball position d into the future
// under constant deceleration from rolling friction. The prediction
// horizon is clamped at the stopping time so the model never rolls the
// ball backwards. The second return is false when the ball has never
// been observed.
func (s *Store) PredictBallPosition(d time.Duration) (geom.XY, bool) {
	pos, ok := s.BallPosition()
	if !ok {
		return geom.XY{}, false
	}
	v := s.BallVelocity()
	speed := length(v)
	if speed == 0 {
		return pos, true
	}
	t := d.Seconds()
	if stop := speed / s.cfg.BallDeceleration; t > stop {
		t = stop
	}
	dir := v.Scale(1 / speed)
	travel := speed*t - 0.5*s.cfg.BallDeceleration*t*t
	return pos.Add(dir.Scale(travel)), true
}

func length(v geom.XY) float64 {
	return math.Hypot(v.X, v.Y)
}
