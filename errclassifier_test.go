// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
)

func TestDefaultErrClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, errclass.ETIMEDOUT},
		{"wrapped in BindError", &BindError{Address: "127.0.0.1:9901", Err: context.DeadlineExceeded}, errclass.ETIMEDOUT},
		{"wrapped with fmt", fmt.Errorf("accept: %w", context.DeadlineExceeded), errclass.ETIMEDOUT},
		{"unknown error", errors.New("unknown error"), errclass.EGENERIC},
		{"connection error", ErrRequestTooLarge, errclass.EGENERIC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultErrClassifier.Classify(tt.err))
		})
	}
}

func TestErrClassifierFunc(t *testing.T) {
	var got error
	classifier := ErrClassifierFunc(func(err error) string {
		got = err
		return "ECUSTOM"
	})

	assert.Equal(t, "ECUSTOM", classifier.Classify(ErrBadRequest))
	assert.Same(t, ErrBadRequest, got)
}
