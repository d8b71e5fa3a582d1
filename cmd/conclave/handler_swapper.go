package main

import (
	"net/http"
	"sync/atomic"
)

// handlerSwapper is an http.Handler whose target can be replaced while serving.
// serve swaps in a rebuilt panel when a reload changes allowed_origins.
type handlerSwapper struct {
	current atomic.Pointer[http.Handler]
}

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	s := &handlerSwapper{}
	s.Swap(h)
	return s
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.current.Load()).ServeHTTP(w, r)
}

// Swap replaces the underlying handler atomically.
func (s *handlerSwapper) Swap(h http.Handler) {
	s.current.Store(&h)
}
