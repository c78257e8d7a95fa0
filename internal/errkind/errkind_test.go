// SPDX-License-Identifier: GPL-3.0-or-later

package errkind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "Parse", Parse.String())
	assert.Equal(t, "Fatal", Fatal.String())
}

func TestErrorWrapAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := New(Resolve, "resolve-addr", base)
	assert.Equal(t, Resolve, Of(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "resolve-addr")
}

func TestOfDefaultsToFatal(t *testing.T) {
	assert.Equal(t, Fatal, Of(errors.New("unclassified")))
}

func TestDefaultClassifierNil(t *testing.T) {
	assert.Equal(t, "", DefaultClassifier.Classify(nil))
}

func TestDefaultClassifierGeneric(t *testing.T) {
	assert.Equal(t, EGENERIC, DefaultClassifier.Classify(errors.New("weird")))
}
