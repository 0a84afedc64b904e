package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestTimeoutFitsWriteTimeout(t *testing.T) {
	assert.Less(t, requestTimeout, writeTimeout)
}
