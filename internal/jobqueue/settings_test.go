package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettingsValidate(t *testing.T) {
	valid := Settings{CmdTemplate: "true {}", MaxWorkers: 1, RetryWait: 0}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Settings{CmdTemplate: "", MaxWorkers: 1}.Validate())
	assert.Error(t, Settings{CmdTemplate: "true", MaxWorkers: 0}.Validate())
	assert.Error(t, Settings{CmdTemplate: "true", MaxWorkers: 1, RetryWait: -time.Second}.Validate())
}
