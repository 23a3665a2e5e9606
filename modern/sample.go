package modern

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

type SamplePhase string

const (
	SamplePhaseIgnoring  SamplePhase = "ignoring"
	SamplePhaseAveraging SamplePhase = "averaging"
	SamplePhaseFinished  SamplePhase = "finished"
)

// Reading is one measurement of a channel output.
type Reading struct {
	Millivolts int `json:"mv"`
	Milliamps  int `json:"ma"`
}

// SampleStats summarises the averaging phase.
type SampleStats struct {
	Count          int     `json:"count"`
	MeanMillivolts float64 `json:"mean_mv"`
	StdMillivolts  float64 `json:"std_mv"`
	MeanMilliamps  float64 `json:"mean_ma"`
	StdMilliamps   float64 `json:"std_ma"`
}

type SampleUpdate struct {
	Phase        SamplePhase
	IgnoreDone   int
	IgnoreTarget int
	AvgDone      int
	AvgTarget    int
	Current      Reading
	// Final is set when Phase is finished.
	Final *SampleStats
}

// SampleInterval is the pause between two sample exchanges.
var SampleInterval = 20 * time.Millisecond

// SampleOutput reads the output voltage and current of channel ch on demand.
// The first ignoreTarget readings are discarded while the output settles;
// the next avgTarget are summarised. The context is checked between
// exchanges. Channels without current readback report 0 mA.
func SampleOutput(
	ctx context.Context,
	s *Session,
	ch int,
	ignoreTarget int,
	avgTarget int,
	onUpdate func(SampleUpdate),
) (SampleStats, error) {
	if s == nil {
		return SampleStats{}, fmt.Errorf("not connected")
	}
	if ignoreTarget < 0 {
		ignoreTarget = 0
	}
	if avgTarget <= 0 {
		return SampleStats{}, fmt.Errorf("avgTarget must be > 0")
	}
	lim, err := s.channel("sample", ch)
	if err != nil {
		return SampleStats{}, err
	}

	readOnce := func() (Reading, error) {
		var r Reading
		mv, err := s.ReadOutputVoltage(ch)
		if err != nil {
			return r, err
		}
		r.Millivolts = mv
		if lim.CurrentReadback {
			ma, err := s.ReadOutputCurrent(ch)
			if err != nil {
				return r, err
			}
			r.Milliamps = ma
		}
		return r, nil
	}

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(SampleInterval):
			return nil
		}
	}

	for done := 0; done < ignoreTarget; done++ {
		if err := ctx.Err(); err != nil {
			return SampleStats{}, err
		}
		cur, err := readOnce()
		if err != nil {
			return SampleStats{}, err
		}
		if onUpdate != nil {
			onUpdate(SampleUpdate{
				Phase:        SamplePhaseIgnoring,
				IgnoreDone:   done + 1,
				IgnoreTarget: ignoreTarget,
				AvgTarget:    avgTarget,
				Current:      cur,
			})
		}
		if err := wait(); err != nil {
			return SampleStats{}, err
		}
	}

	volts := make([]float64, 0, avgTarget)
	amps := make([]float64, 0, avgTarget)
	for done := 0; done < avgTarget; done++ {
		if err := ctx.Err(); err != nil {
			return SampleStats{}, err
		}
		cur, err := readOnce()
		if err != nil {
			return SampleStats{}, err
		}
		volts = append(volts, float64(cur.Millivolts))
		amps = append(amps, float64(cur.Milliamps))
		if onUpdate != nil {
			onUpdate(SampleUpdate{
				Phase:        SamplePhaseAveraging,
				IgnoreDone:   ignoreTarget,
				IgnoreTarget: ignoreTarget,
				AvgDone:      done + 1,
				AvgTarget:    avgTarget,
				Current:      cur,
			})
		}
		if done < avgTarget-1 {
			if err := wait(); err != nil {
				return SampleStats{}, err
			}
		}
	}

	res := SampleStats{Count: len(volts)}
	res.MeanMillivolts, res.StdMillivolts = meanStd(volts)
	res.MeanMilliamps, res.StdMilliamps = meanStd(amps)

	if onUpdate != nil {
		onUpdate(SampleUpdate{
			Phase:        SamplePhaseFinished,
			IgnoreDone:   ignoreTarget,
			IgnoreTarget: ignoreTarget,
			AvgDone:      avgTarget,
			AvgTarget:    avgTarget,
			Final:        &res,
		})
	}
	return res, nil
}

func meanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
