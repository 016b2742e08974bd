package quizengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midQuizSession() *Session {
	sess := testSession(5)
	sess.recordAnswer(sess.Questions[0], []int{0}, true)
	sess.recordAnswer(sess.Questions[1], []int{1}, false)
	return sess
}

func TestSnapshotRoundTrip(t *testing.T) {
	sess := midQuizSession()

	data, err := Serialize(sess)
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)

	again, err := Serialize(restored)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestRestorePreservesPositionAndPool(t *testing.T) {
	sess := midQuizSession()
	next := sess.CurrentQuestion()
	require.NotNil(t, next)

	data, err := Serialize(sess)
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)

	assert.Equal(t, sess.Position, restored.Position)
	assert.Equal(t, sess.ActivePool, restored.ActivePool)
	assert.Equal(t, next.ID, restored.CurrentQuestion().ID)
	assert.Equal(t, sess.RecycleCounts, restored.RecycleCounts)
	assert.Len(t, restored.Answers, 2)
	assert.Equal(t, StatePresent, restored.ResumeState())
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not json", []byte("not a snapshot")},
		{"wrong shape", []byte(`{"session_id": 42}`)},
		{"missing id", []byte(`{"total_questions": 5}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := Restore(tt.data)
			assert.Nil(t, sess)
			require.ErrorIs(t, err, ErrRestoration)
		})
	}
}

func TestRestoreRejectsBrokenInvariants(t *testing.T) {
	sess := midQuizSession()
	sess.ActivePool = append(sess.ActivePool, "q-999")

	data, err := Serialize(sess)
	require.NoError(t, err)

	_, err = Restore(data)
	require.ErrorIs(t, err, ErrRestoration)
	assert.Contains(t, err.Error(), "q-999")
}

func TestResumeStateAfterExhaustion(t *testing.T) {
	sess := testSession(2)
	sess.recordAnswer(sess.Questions[0], []int{0}, true)
	sess.recordAnswer(sess.Questions[1], []int{0}, true)

	assert.True(t, sess.Completed())
	assert.Equal(t, StateFinalize, sess.ResumeState())
}
