package core

import (
	"github.com/signalsfoundry/transport-simulator/model"
)

// Snapshot captures the observable state after the last completed step.
func (e *SimulationEngine) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		Tick:   e.tick,
		Time:   e.simTime,
		Movers: make([]model.MoverSnapshot, 0, len(e.movers)),
	}
	for _, m := range e.movers {
		ms := model.MoverSnapshot{
			ID:        string(m.ID()),
			Segment:   string(m.SegmentID()),
			Offset:    m.Position(),
			Position:  Point(m.WorldPosition()),
			Speed:     m.Speed(),
			State:     m.State().String(),
			Blocked:   m.Blocked(),
			AtPathEnd: m.AtPathEnd(),
		}
		if !m.OnPath() {
			ms.Speed = 0
		}
		if s := m.Station(); s != nil {
			ms.Station = s.ID()
		}
		snap.Movers = append(snap.Movers, ms)
	}
	for _, s := range e.stations {
		ss := model.StationSnapshot{
			ID:        s.ID(),
			Waiting:   moverIDs(s.waiting),
			MovingIn:  moverIDs(s.movingIn),
			MovingOut: moverIDs(s.movingOut),
		}
		if o := s.Occupant(); o != nil {
			ss.Occupant = string(o.ID())
		}
		snap.Stations = append(snap.Stations, ss)
	}
	for _, cc := range e.carriers {
		snap.Carriers = append(snap.Carriers, model.CarrierSnapshot{
			ID:       cc.ID(),
			Chain:    string(cc.Chain().Start()),
			Offset:   cc.Offset(),
			Position: Point(cc.Chain().Position(cc.Offset())),
		})
	}
	return snap
}

func moverIDs(ms []*Mover) []string {
	if len(ms) == 0 {
		return nil
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m.ID())
	}
	return out
}
