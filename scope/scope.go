// Package scope tracks which translator bindings are visible at a point of
// a single-file traversal.
//
// A Stack is owned by one traversal. Frames are pushed on block and
// function entry and popped on exit, so an inner binding shadows an outer
// one only for its nested scope.
package scope

// Record is what a translator binding knows about its keys.
type Record struct {
	// Namespace is empty when the binding did not name one.
	Namespace string
	// KeyPrefix is prepended to every key looked up through the binding.
	KeyPrefix []string
}

type frame map[string]Record

// Stack is a lexical scope stack. The zero value has no frames; Push the
// module frame before use or call New.
type Stack struct {
	frames []frame
}

// New returns a Stack with the module frame pushed.
func New() *Stack {
	s := &Stack{}
	s.Push()
	return s
}

// Push opens a nested scope.
func (s *Stack) Push() {
	s.frames = append(s.frames, nil)
}

// Pop closes the innermost scope. The module frame is never popped.
func (s *Stack) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Bind attaches r to name in the innermost scope.
func (s *Stack) Bind(name string, r Record) {
	if len(s.frames) == 0 {
		s.Push()
	}
	top := len(s.frames) - 1
	if s.frames[top] == nil {
		s.frames[top] = make(frame)
	}
	s.frames[top][name] = r
}

// Alias binds alias to whatever from resolves to. It reports false when
// from is not a translator binding.
func (s *Stack) Alias(alias, from string) bool {
	r, ok := s.Lookup(from)
	if !ok {
		return false
	}
	s.Bind(alias, r)
	return true
}

// Lookup finds the innermost binding of name.
func (s *Stack) Lookup(name string) (Record, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if r, ok := s.frames[i][name]; ok {
			return r, true
		}
	}
	return Record{}, false
}
