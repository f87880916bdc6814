// Package notify carries transient user-facing notices (toasts).
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Queue buffers toasts until the UI drains them. Only the newest limit
// toasts are kept.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 10
	}
	return &Queue{limit: limit}
}

func (q *Queue) Success(message string) { q.push(LevelSuccess, message) }
func (q *Queue) Error(message string)   { q.push(LevelError, message) }
func (q *Queue) Info(message string)    { q.push(LevelInfo, message) }

// Drain returns and forgets the pending toasts, oldest first.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.toasts
	q.toasts = nil
	if out == nil {
		return []Toast{}
	}
	return out
}

func (q *Queue) push(level Level, message string) {
	if message == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, Toast{Level: level, Message: message, At: time.Now()})
	if over := len(q.toasts) - q.limit; over > 0 {
		q.toasts = q.toasts[over:]
	}
}

type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}
func (Nop) Info(string)    {}
