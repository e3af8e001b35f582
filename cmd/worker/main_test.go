package main

import (
	stdtesting "testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkpress/inkpress/internal/app"
	_ "github.com/inkpress/inkpress/testing"
)

func TestMainSkipsStartupInTestMode(t *stdtesting.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
