package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetRunIdInContext_DoesNotMutateParent(t *testing.T) {
	parent := SetAppSourceInContext(context.Background(), "cron")
	child := SetRunIdInContext(parent, "run_1")

	assert.Equal(t, "", GetRunIdFromContext(parent))
	assert.Equal(t, "run_1", GetRunIdFromContext(child))
	assert.Equal(t, "cron", GetAppSourceFromContext(child))
}

func TestGetContext_Empty(t *testing.T) {
	assert.NotNil(t, GetContext(context.Background()))
	assert.Equal(t, "", GetRequestIdFromContext(context.Background()))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("run", 12)
	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Len(t, id, 16)
	assert.Len(t, GenerateNanoIDWithPrefix("", 8), 8)
}

func TestStringPtrOrNil(t *testing.T) {
	assert.Nil(t, StringPtrOrNil("   "))
	assert.Equal(t, "x", *StringPtrOrNil(" x "))
}
