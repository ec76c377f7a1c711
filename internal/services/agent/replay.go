package agent

import (
	"math/rand"

	"FinSignal/internal/domain/models"
)

// Replay is a capped experience buffer; the oldest record is evicted first.
type Replay struct {
	buf  []models.ExperienceRecord
	head int
	size int
}

func NewReplay(capacity int) *Replay {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Replay{buf: make([]models.ExperienceRecord, capacity)}
}

func (r *Replay) Len() int { return r.size }

func (r *Replay) Cap() int { return len(r.buf) }

func (r *Replay) Add(e models.ExperienceRecord) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

// Sample draws up to n distinct records uniformly at random.
func (r *Replay) Sample(rng *rand.Rand, n int) []models.ExperienceRecord {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	idx := rng.Perm(r.size)[:n]
	out := make([]models.ExperienceRecord, n)
	for i, j := range idx {
		out[i] = r.buf[(r.head+j)%len(r.buf)]
	}
	return out
}
