package queryerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := FieldNotFound("Pessoa", "profissao.foo", "foo")

	assert.Equal(t, `FIELD_NOT_FOUND: field "foo" not found (path=profissao.foo) (entity=Pessoa)`, err.Error())
}

func TestFaultOf(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		fault Fault
	}{
		{"field not found", FieldNotFound("Pessoa", "x", "x"), ClientFault},
		{"invalid expression", InvalidExpression("idade", "bad"), ClientFault},
		{"collection target", CollectionTargetUndefined("Pessoa", "tags.x", "tags"), ClientFault},
		{"build failure", Wrap(CodeCriteriaBuildFailure, "Pessoa", errors.New("no such column")), ServerFault},
		{"execution failure", Wrap(CodeQueryExecutionFailure, "Pessoa", errors.New("disk I/O")), ServerFault},
		{"mapping failure", Wrap(CodeResultMappingFailure, "Pessoa", errors.New("conflict")), ServerFault},
		{"plain error", errors.New("boom"), ServerFault},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fault, FaultOf(tc.err))
		})
	}
}

func TestWrap_KeepsExistingCode(t *testing.T) {
	inner := FieldNotFound("", "x", "x")
	wrapped := Wrap(CodeQueryExecutionFailure, "Pessoa", fmt.Errorf("resolve: %w", inner))

	assert.True(t, IsFieldNotFound(wrapped))
	assert.False(t, IsQueryExecutionFailure(wrapped))
	assert.Equal(t, "Pessoa", inner.Entity)
}

func TestWrap_AddsCodeAndCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(CodeQueryExecutionFailure, "Pessoa", cause)

	require.True(t, IsQueryExecutionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "entity=Pessoa")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(CodeQueryExecutionFailure, "Pessoa", nil))
}
