/*
Copyright © 2026 the psha authors.
This file is part of psha, a probabilistic seismic hazard analysis engine.

psha is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

psha is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with psha.  If not, see <http://www.gnu.org/licenses/>.
*/

package workpool

import (
	"fmt"
	"sync/atomic"
	"testing"
)

func TestSizeWorkers(t *testing.T) {
	cases := []struct {
		size Size
		cpus int
		want int
	}{
		{One, 8, 1},
		{Half, 8, 4},
		{Half, 1, 1},
		{NMinus2, 8, 6},
		{NMinus2, 2, 1},
		{NMinus2, 1, 1},
		{All, 8, 8},
	}
	for _, c := range cases {
		if got := c.size.Workers(c.cpus); got != c.want {
			t.Errorf("%s.Workers(%d) = %d, want %d", c.size, c.cpus, got, c.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	for _, s := range []string{"ONE", "HALF", "N_MINUS_2", "ALL", "all"} {
		if _, ok := ParseSize(s); !ok {
			t.Errorf("ParseSize(%q) failed to parse", s)
		}
	}
	if _, ok := ParseSize("nonsense"); ok {
		t.Error("ParseSize(\"nonsense\") should fail")
	}
}

func TestJoinOrderPreserved(t *testing.T) {
	p := NewN(4)
	const n = 50
	futures := make([]*Future[int], n)
	for i := 0; i < n; i++ {
		i := i
		futures[i] = Go(p, func() (int, error) { return i * i, nil })
	}
	results, err := Join(futures)
	if err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	for i, r := range results {
		if r != i*i {
			t.Errorf("results[%d] = %d, want %d", i, r, i*i)
		}
	}
}

func TestJoinReturnsFirstError(t *testing.T) {
	p := NewN(2)
	futures := []*Future[int]{
		Go(p, func() (int, error) { return 1, nil }),
		Go(p, func() (int, error) { return 0, fmt.Errorf("boom") }),
		Go(p, func() (int, error) { return 3, nil }),
	}
	_, err := Join(futures)
	if err == nil {
		t.Fatal("expected an error from Join")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewN(2)
	var cur, max int64
	const n = 20
	futures := make([]*Future[struct{}], n)
	for i := 0; i < n; i++ {
		futures[i] = Go(p, func() (struct{}, error) {
			c := atomic.AddInt64(&cur, 1)
			for {
				m := atomic.LoadInt64(&max)
				if c <= m || atomic.CompareAndSwapInt64(&max, m, c) {
					break
				}
			}
			atomic.AddInt64(&cur, -1)
			return struct{}{}, nil
		})
	}
	if _, err := Join(futures); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	if max > 2 {
		t.Errorf("observed concurrency %d, want <= 2", max)
	}
}
