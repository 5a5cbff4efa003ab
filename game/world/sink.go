package world

import (
	"github.com/kasuganosora/nightwatch/game/ai"
)

// enemySink turns controller callbacks into published events.
// It runs on the room's tick goroutine, under the room lock.
type enemySink struct {
	room  *Room
	enemy *Enemy
}

func (s *enemySink) emit(k EventKind, from, to string) {
	s.room.counters.add(k)
	if s.room.pub == nil {
		return
	}
	s.room.pub.Emit(&Event{
		Room:  s.room.ID,
		Enemy: s.enemy.ID,
		Name:  s.enemy.Name,
		Kind:  k,
		From:  from,
		To:    to,
		Tick:  s.room.ticks,
	})
}

func (s *enemySink) OnStateChanged(from, to ai.State) {
	s.emit(KindStateChanged, from.String(), to.String())
}

func (s *enemySink) OnTargetDetected() { s.emit(KindTargetDetected, "", "") }

func (s *enemySink) OnTargetLost() { s.emit(KindTargetLost, "", "") }

func (s *enemySink) OnTargetCaught() { s.emit(KindTargetCaught, "", "") }
