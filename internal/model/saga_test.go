package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSagaTransitions(t *testing.T) {
	testCases := []struct {
		from string
		to   string
		want bool
	}{
		{SagaStatusStarted, SagaStatusInProgress, true},
		{SagaStatusStarted, SagaStatusFailed, true},
		{SagaStatusInProgress, SagaStatusCompleted, true},
		{SagaStatusInProgress, SagaStatusCompensating, true},
		{SagaStatusCompensating, SagaStatusFailed, true},

		// 终态不可流出
		{SagaStatusCompleted, SagaStatusInProgress, false},
		{SagaStatusFailed, SagaStatusStarted, false},

		// 不可跳步或回退
		{SagaStatusStarted, SagaStatusCompleted, false},
		{SagaStatusInProgress, SagaStatusStarted, false},
		{SagaStatusCompensating, SagaStatusCompleted, false},

		{"UNKNOWN", SagaStatusCompleted, false},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, CanTransitionTo(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
