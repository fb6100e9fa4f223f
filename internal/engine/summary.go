package engine

// Summary accumulates the outcome counters of one run. Addition is
// commutative, so parallel rule summaries merge order-independently.
type Summary struct {
	Success int
	Errors  int
}

// Add merges another summary into this one.
func (s *Summary) Add(other Summary) {
	s.Success += other.Success
	s.Errors += other.Errors
}
