package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustFrequencyZeroDeltaIsNoop(t *testing.T) {
	s := NewInMemorySink[string, string]()
	s.AdjustUserEntityFrequency("u1", "ClientAccount", 0)
	assert.Equal(t, 0, s.UserEntityFrequency("u1", "ClientAccount"))

	s.AdjustUserEntityFrequency("u1", "ClientAccount", 2)
	assert.Equal(t, 2, s.UserEntityFrequency("u1", "ClientAccount"))

	s.AdjustUserEntityFrequency("u1", "ClientAccount", -2)
	assert.Equal(t, 0, s.UserEntityFrequency("u1", "ClientAccount"))
}

func TestIdempotentAddEmitsBeginSetCancel(t *testing.T) {
	s := NewInMemorySink[string, string]()

	id := s.Begin("UserAdd")
	s.End(id, "UserAdd")
	s.Increment("UserAdd")
	s.Set(RelationUsers, 1)

	id2 := s.Begin("UserAdd")
	s.Set(RelationUsers, 1)
	s.CancelBegin(id2, "UserAdd")

	events := s.Events()
	ops := make([]string, len(events))
	for i, e := range events {
		ops[i] = e.Op
	}
	assert.Equal(t, []string{"begin", "end", "increment", "set", "begin", "set", "cancelBegin"}, ops)
	assert.Equal(t, int64(1), s.Completed("UserAdd"))
}

func TestSetEnabledSuppressesEmission(t *testing.T) {
	s := NewInMemorySink[string, string]()
	s.SetEnabled(false)
	id := s.Begin("UserAdd")
	s.End(id, "UserAdd")
	assert.Empty(t, s.Events())
}
