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

package psha

import "testing"

func TestInputListMinDistance(t *testing.T) {
	l := NewInputList("src", SourceBacked)
	if !isInf(l.MinDistance()) {
		t.Error("empty list should have +Inf min distance")
	}
	l.Add(HazardInput{RJB: 10})
	l.Add(HazardInput{RJB: 3})
	l.Add(HazardInput{RJB: 7})
	if l.MinDistance() != 3 {
		t.Errorf("MinDistance() = %v, want 3", l.MinDistance())
	}
}

func isInf(v float64) bool { return v > 1e300 }

func TestInputListPartitionPreservesOrder(t *testing.T) {
	l := NewInputList("sys", SystemBacked)
	for i := 0; i < 10; i++ {
		l.Add(HazardInput{RJB: float64(i)})
	}
	parts := l.Partition(3)
	if len(parts) != 4 {
		t.Fatalf("got %d partitions, want 4", len(parts))
	}
	var recombined []HazardInput
	for _, p := range parts {
		if p.ParentName() != "sys" {
			t.Errorf("partition parent name = %q, want sys", p.ParentName())
		}
		recombined = append(recombined, p.All()...)
	}
	if len(recombined) != 10 {
		t.Fatalf("recombined length = %d, want 10", len(recombined))
	}
	for i, in := range recombined {
		if in.RJB != float64(i) {
			t.Errorf("recombined[%d].RJB = %v, want %v", i, in.RJB, i)
		}
	}
}

func TestInputListPartitionRejectsAdd(t *testing.T) {
	l := NewInputList("sys", SystemBacked)
	l.Add(HazardInput{RJB: 1})
	parts := l.Partition(1)
	if err := parts[0].Add(HazardInput{RJB: 2}); err == nil {
		t.Error("expected BuilderMisuse adding to a partition")
	}
}

func TestInputListPartitionEmptyList(t *testing.T) {
	l := NewInputList("sys", SystemBacked)
	parts := l.Partition(4)
	if len(parts) != 1 || parts[0].Len() != 0 {
		t.Errorf("expected a single empty partition, got %d partitions", len(parts))
	}
}

func TestInputListPartitionNonPositiveChunkUsesWholeList(t *testing.T) {
	l := NewInputList("sys", SystemBacked)
	for i := 0; i < 5; i++ {
		l.Add(HazardInput{RJB: float64(i)})
	}
	parts := l.Partition(0)
	if len(parts) != 1 || parts[0].Len() != 5 {
		t.Errorf("expected one partition of 5, got %d partitions", len(parts))
	}
}
