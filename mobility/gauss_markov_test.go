package mobility

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// processSeries runs a Gauss-Markov node with constant means (speed 5,
// direction 0, pitch 0) far from any face and records the process state at
// every tick.
func processSeries(t *testing.T, alpha float64, steps int) (speeds, directions, pitches []float64) {
	t.Helper()
	sched := newScheduler()
	cfg := DefaultGaussMarkovConfig()
	cfg.Bounds = core.NewBox(-1e7, 1e7, -1e7, 1e7, -1e7, 1e7)
	cfg.Alpha = alpha
	cfg.MeanVelocity = randvar.ConstantSpec(5)
	cfg.MeanDirection = randvar.ConstantSpec(0)
	cfg.MeanPitch = randvar.ConstantSpec(0)

	gm, err := NewGaussMarkov("gm", cfg, sched)
	if err != nil {
		t.Fatalf("NewGaussMarkov: %v", err)
	}
	gm.AssignStreams(randvar.NewGenerator(99, 1), 0)
	if err := gm.SetPosition(r3.Vector{}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	gm.AddCourseChangeListener(func(model.CourseChange) {
		v, d, p := gm.State()
		speeds = append(speeds, v)
		directions = append(directions, d)
		pitches = append(pitches, p)
	})
	gm.Start()
	sched.RunUntil(epoch.Add(time.Duration(steps-1) * time.Second))

	if len(speeds) != steps {
		t.Fatalf("course changes = %d, want %d", len(speeds), steps)
	}
	return speeds, directions, pitches
}

func lagOneCorrelation(x []float64) float64 {
	return stat.Correlation(x[:len(x)-1], x[1:], nil)
}

func TestGaussMarkov_AlphaZeroIsMemoryless(t *testing.T) {
	speeds, directions, pitches := processSeries(t, 0, 2000)
	series := []struct {
		name   string
		values []float64
		mean   float64
	}{
		{"speed", speeds, 5},
		{"direction", directions, 0},
		{"pitch", pitches, 0},
	}
	for _, s := range series {
		if r := lagOneCorrelation(s.values); math.Abs(r) > 0.1 {
			t.Fatalf("%s: lag-1 correlation = %v, want about 0", s.name, r)
		}
		// Each value is the mean plus unit-variance noise.
		noise := make([]float64, len(s.values))
		for i, v := range s.values {
			noise[i] = v - s.mean
		}
		mean, variance := stat.MeanVariance(noise, nil)
		if math.Abs(mean) > 0.1 {
			t.Fatalf("%s: mean noise = %v, want about 0", s.name, mean)
		}
		if math.Abs(variance-1) > 0.15 {
			t.Fatalf("%s: noise variance = %v, want about 1", s.name, variance)
		}
	}
}

func TestGaussMarkov_HighAlphaIsCorrelated(t *testing.T) {
	speeds, directions, pitches := processSeries(t, 0.9, 2000)
	for i, values := range [][]float64{speeds, directions, pitches} {
		if r := lagOneCorrelation(values); r < 0.7 {
			t.Fatalf("series %d: lag-1 correlation = %v, want close to 0.9", i, r)
		}
	}
}

func TestGaussMarkov_AlphaOneKeepsVelocityAndRebounds(t *testing.T) {
	sched := newScheduler()
	metrics := newRecordingMetrics()
	cfg := DefaultGaussMarkovConfig()
	cfg.Bounds = core.NewBox(0, 100, 0, 100, 0, 100)
	cfg.Alpha = 1
	cfg.MeanVelocity = randvar.ConstantSpec(1)
	cfg.MeanDirection = randvar.ConstantSpec(0)
	cfg.MeanPitch = randvar.ConstantSpec(0)

	gm, err := NewGaussMarkov("gm", cfg, sched, WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("NewGaussMarkov: %v", err)
	}
	if err := gm.SetPosition(r3.Vector{X: 95, Y: 50, Z: 50}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	gm.Start()

	sched.RunUntil(epoch.Add(3 * time.Second))
	if !near(gm.Velocity(), r3.Vector{X: 1}, 1e-9) {
		t.Fatalf("velocity = %v, want (1,0,0)", gm.Velocity())
	}

	sched.RunUntil(epoch.Add(10 * time.Second))
	if !near(gm.Velocity(), r3.Vector{X: -1}, 1e-9) {
		t.Fatalf("velocity after rebound = %v, want (-1,0,0)", gm.Velocity())
	}
	if !near(gm.Position(), r3.Vector{X: 95, Y: 50, Z: 50}, 1e-6) {
		t.Fatalf("position = %v, want (95,50,50)", gm.Position())
	}
	if _, direction, _ := gm.Means(); math.Abs(direction-math.Pi) > 1e-12 {
		t.Fatalf("mean direction = %v, want pi", direction)
	}
	if len(metrics.rebounds) != 1 || metrics.rebounds[0] != core.Right {
		t.Fatalf("rebounds = %v, want [right]", metrics.rebounds)
	}
}

func TestGaussMarkov_ReboundsOffObstacle(t *testing.T) {
	sched := newScheduler()
	metrics := newRecordingMetrics()
	cfg := DefaultGaussMarkovConfig()
	cfg.Bounds = core.NewBox(0, 100, 0, 100, 0, 100)
	cfg.Alpha = 1
	cfg.MeanVelocity = randvar.ConstantSpec(1)
	cfg.MeanDirection = randvar.ConstantSpec(0)
	cfg.MeanPitch = randvar.ConstantSpec(0)

	obstacle := core.NewBox(52.5, 60, 40, 60, 40, 60)
	gm, err := NewGaussMarkov("gm", cfg, sched, WithObstacles(obstacle), WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("NewGaussMarkov: %v", err)
	}
	if err := gm.SetPosition(r3.Vector{X: 50, Y: 50, Z: 50}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	gm.Start()
	sched.RunUntil(epoch.Add(5 * time.Second))

	// Hit at 2.5s, then 2.5s back towards -x.
	if !near(gm.Position(), r3.Vector{X: 50, Y: 50, Z: 50}, 1e-6) {
		t.Fatalf("position = %v, want (50,50,50)", gm.Position())
	}
	if gm.Velocity().X >= 0 {
		t.Fatalf("velocity = %v, want heading -x", gm.Velocity())
	}
	if metrics.obstacle != 1 || metrics.rebounds[0] != core.Left {
		t.Fatalf("rebounds = %v obstacle=%d, want one obstacle rebound off left", metrics.rebounds, metrics.obstacle)
	}
}
