package storage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	re := regexp.MustCompile(`^users/12/[0-9a-f-]{36}\.png$`)
	assert.Regexp(t, re, objectName(12, "image/PNG"))
	assert.NotEqual(t, objectName(12, "image/png"), objectName(12, "image/png"))
	assert.Regexp(t, `\.img$`, objectName(1, "image/x-unknown"))
}

func TestPublicObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/avatars/users/1/a.png",
		publicObjectURL("https://cdn.test/", "avatars", "users/1/a.png"))
}
