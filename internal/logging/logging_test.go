package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitSetsLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	assert.NoError(t, Init("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, Init("chatty"))
}
