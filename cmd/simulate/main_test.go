package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/dental-booking/internal/api"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeBooked, classify(api.StateView{Done: true}, nil))
	assert.Equal(t, outcomeConflict, classify(api.StateView{StepKind: "schedule", Error: "taken"}, nil))
	assert.Equal(t, outcomeRejected, classify(api.StateView{StepKind: "confirm", Error: "slow down"}, nil))
	assert.Equal(t, outcomeError, classify(api.StateView{}, errors.New("refused")))
}

func TestOperationMetrics(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 20; i++ {
		om.Record(time.Duration(i)*time.Millisecond, outcomeBooked)
	}
	om.Record(time.Second, outcomeConflict)

	assert.Equal(t, int64(20), om.Count(outcomeBooked))
	assert.Equal(t, int64(1), om.Count(outcomeConflict))
	assert.Zero(t, om.Count(outcomeNoSlots))

	_, min, max, _, p95 := om.Stats()
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, time.Second, max)
	assert.Equal(t, 20*time.Millisecond, p95)
}

func TestValidateConfig(t *testing.T) {
	ok := SimConfig{Workers: 1, Duration: time.Second, RPS: 1, DaysAhead: 1}
	assert.NoError(t, validateConfig(ok))

	bad := ok
	bad.RPS = 0
	assert.Error(t, validateConfig(bad))
}
