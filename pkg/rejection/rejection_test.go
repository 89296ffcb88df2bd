package rejection_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/waypoint/pkg/rejection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes_AreStable(t *testing.T) {
	assert.Equal(t, 2, int(rejection.Superseded))
	assert.Equal(t, 3, int(rejection.Aborted))
	assert.Equal(t, 4, int(rejection.Invalid))
	assert.Equal(t, 5, int(rejection.Ignored))
	assert.Equal(t, 6, int(rejection.Error))
}

func TestNormalize(t *testing.T) {
	aborted := rejection.NewAborted("stop")
	assert.Same(t, aborted, rejection.Normalize(aborted))

	wrapped := fmt.Errorf("hook failed: %w", aborted)
	assert.Same(t, aborted, rejection.Normalize(wrapped))

	cause := errors.New("db down")
	r := rejection.Normalize(cause)
	assert.Equal(t, rejection.Error, r.Type)
	assert.ErrorIs(t, r, cause)

	r = rejection.Normalize("plain value")
	assert.Equal(t, rejection.Error, r.Type)
	assert.Equal(t, "plain value", r.Detail)
}

func TestIDs_Increment(t *testing.T) {
	a := rejection.NewIgnored(nil)
	b := rejection.NewIgnored(nil)
	assert.Greater(t, b.ID, a.ID)
}

func TestRedirected(t *testing.T) {
	r := rejection.NewRedirected("target")
	assert.True(t, r.Redirected)
	assert.Equal(t, rejection.Superseded, r.Type)
	assert.False(t, rejection.NewSuperseded(nil).Redirected)
}

func TestAs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", rejection.NewInvalid("bad params"))
	r, ok := rejection.As(err)
	require.True(t, ok)
	assert.Equal(t, rejection.Invalid, r.Type)
	assert.True(t, rejection.IsType(err, rejection.Invalid))
	assert.False(t, rejection.IsType(errors.New("x"), rejection.Invalid))
}

func TestError_Format(t *testing.T) {
	r := rejection.NewAborted("Hook aborted transition")
	assert.Contains(t, r.Error(), "type: 3")
	assert.Contains(t, r.Error(), "Hook aborted transition")
}
