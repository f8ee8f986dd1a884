// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fifo provides a first-in, first-out container.
package fifo

// compactAfter is the number of consumed slots after which
// the backing array is compacted if it is at least half empty.
const compactAfter = 64

// List is a FIFO list backed by a slice.
//
// The zero value is an empty list ready to use.
// It is not safe for concurrent use.
type List[T any] struct {
	items []T
	head  int
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int {
	return len(l.items) - l.head
}

// Push appends v to the back of the list.
func (l *List[T]) Push(v T) {
	l.items = append(l.items, v)
}

// PushAll appends all vs to the back of the list, in order.
func (l *List[T]) PushAll(vs []T) {
	l.items = append(l.items, vs...)
}

// Peek returns the front element without removing it.
func (l *List[T]) Peek() (T, bool) {
	if l.Len() == 0 {
		var zero T
		return zero, false
	}

	return l.items[l.head], true
}

// Pop removes and returns the front element.
// It returns the zero value and false if the list is empty.
func (l *List[T]) Pop() (T, bool) {
	var zero T

	if l.Len() == 0 {
		return zero, false
	}

	v := l.items[l.head]
	l.items[l.head] = zero
	l.head++

	switch {
	case l.head == len(l.items):
		l.items = l.items[:0]
		l.head = 0

	case l.head >= compactAfter && l.head*2 >= len(l.items):
		n := copy(l.items, l.items[l.head:])
		clear(l.items[n:])
		l.items = l.items[:n]
		l.head = 0
	}

	return v, true
}

// Drain removes and returns all elements in order.
func (l *List[T]) Drain() []T {
	if l.Len() == 0 {
		return nil
	}

	res := make([]T, l.Len())
	copy(res, l.items[l.head:])

	clear(l.items)
	l.items = l.items[:0]
	l.head = 0

	return res
}
