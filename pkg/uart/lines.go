package uart

import (
	"fmt"
	"sort"
	"sync"

	fx "github.com/robotalks/radar.go/pkg/framework"
)

// Lines is the set of lines keyed by line number.
type Lines struct {
	lines map[int]*Line
	lock  sync.RWMutex
}

// ErrLineNotFound indicates no line with the number.
type ErrLineNotFound struct {
	Num int
}

// Error implements error.
func (e *ErrLineNotFound) Error() string {
	return fmt.Sprintf("line %d not found", e.Num)
}

// Add registers lines. A number can only be registered once.
func (s *Lines) Add(lines ...*Line) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.lines == nil {
		s.lines = make(map[int]*Line)
	}
	for _, l := range lines {
		if _, exist := s.lines[l.Num]; exist {
			return fmt.Errorf("line %d already registered", l.Num)
		}
		s.lines[l.Num] = l
	}
	return nil
}

// Find gets the line by number, nil if absent.
func (s *Lines) Find(num int) *Line {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lines[num]
}

// SetHandler changes the DataHandler of a line.
func (s *Lines) SetHandler(num int, h DataHandler) error {
	l := s.Find(num)
	if l == nil {
		return &ErrLineNotFound{Num: num}
	}
	l.SetHandler(h)
	return nil
}

// Nums lists registered line numbers in order.
func (s *Lines) Nums() []int {
	s.lock.RLock()
	nums := make([]int, 0, len(s.lines))
	for num := range s.lines {
		nums = append(nums, num)
	}
	s.lock.RUnlock()
	sort.Ints(nums)
	return nums
}

// AddToLoop implements LoopAdder.
func (s *Lines) AddToLoop(loop *fx.Loop) {
	for _, num := range s.Nums() {
		l := s.Find(num)
		loop.AddRunnable(fx.NamedRun(fmt.Sprintf("line%d", num), l))
	}
}
