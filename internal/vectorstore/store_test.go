package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAdvisoryKeyDeterministic(t *testing.T) {
	id := uuid.New()
	require.Equal(t, advisoryKey(id), advisoryKey(id))
	require.NotEqual(t, advisoryKey(id), advisoryKey(uuid.New()))
}
