package channel

// Queue is insertion order FIFO of frames. Not safe for concurrent use.
type Queue struct {
	items [][]byte
	head  int
}

func (self *Queue) Len() int { return len(self.items) - self.head }

func (self *Queue) Push(frame []byte) { self.items = append(self.items, frame) }

// Pop returns nil on empty queue.
func (self *Queue) Pop() []byte {
	if self.Len() == 0 {
		return nil
	}
	frame := self.items[self.head]
	self.items[self.head] = nil
	self.head++
	self.compact()
	return frame
}

// PopN removes up to n oldest frames.
func (self *Queue) PopN(n int) [][]byte {
	if n > self.Len() {
		n = self.Len()
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = self.Pop()
	}
	return out
}

// Drain removes and returns all frames in order.
func (self *Queue) Drain() [][]byte { return self.PopN(self.Len()) }

func (self *Queue) compact() {
	switch {
	case self.head == len(self.items):
		self.items = self.items[:0]
		self.head = 0
	case self.head >= 64 && self.head*2 >= len(self.items):
		n := copy(self.items, self.items[self.head:])
		for i := n; i < len(self.items); i++ {
			self.items[i] = nil
		}
		self.items = self.items[:n]
		self.head = 0
	}
}
