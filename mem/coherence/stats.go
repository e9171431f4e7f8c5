package coherence

// Stats are the counters of a module.
type Stats struct {
	Accesses  uint64
	Hits      uint64
	Reads     uint64
	Writes    uint64
	ReadHits  uint64
	WriteHits uint64

	BlockingReads     uint64
	NonBlockingReads  uint64
	BlockingWrites    uint64
	NonBlockingWrites uint64

	Evictions    uint64
	ReadRetries  uint64
	WriteRetries uint64

	NoRetryAccesses  uint64
	NoRetryHits      uint64
	NoRetryReads     uint64
	NoRetryReadHits  uint64
	NoRetryWrites    uint64
	NoRetryWriteHits uint64
}

// HitRatio returns hits over accesses, or 0 without accesses.
func (s Stats) HitRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses)
}

// Misses returns the accesses that did not hit.
func (s Stats) Misses() uint64 {
	return s.Accesses - s.Hits
}

func (s *Stats) countLookup(f *frame) {
	s.Accesses++
	if f.hit {
		s.Hits++
	}

	if f.read {
		s.Reads++
		if f.blocking {
			s.BlockingReads++
		} else {
			s.NonBlockingReads++
		}

		if f.hit {
			s.ReadHits++
		}
	} else {
		s.Writes++
		if f.blocking {
			s.BlockingWrites++
		} else {
			s.NonBlockingWrites++
		}

		if f.hit {
			s.WriteHits++
		}
	}

	if f.retry {
		return
	}

	s.NoRetryAccesses++
	if f.hit {
		s.NoRetryHits++
	}

	if f.read {
		s.NoRetryReads++
		if f.hit {
			s.NoRetryReadHits++
		}
	} else {
		s.NoRetryWrites++
		if f.hit {
			s.NoRetryWriteHits++
		}
	}
}
