package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrTransferFailed, "transfer failed")
	assert.Equal(t, ErrTransferFailed, err.Code)
	assert.Equal(t, "[TRANSFER_FAILED] transfer failed", err.Error())
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap(inner, ErrTransferFailed, "cannot fetch file")

	assert.Equal(t, "[TRANSFER_FAILED] cannot fetch file: connection refused", err.Error())
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrTransferFailed, "should be nil"))
	assert.Nil(t, Wrapf(nil, ErrTransferFailed, "should be %s", "nil"))
}

func TestIsErrorCode(t *testing.T) {
	err := Newf(ErrRemoteNotFound, "no file at %s", "http://example.com/x.jar")

	assert.True(t, IsErrorCode(err, ErrRemoteNotFound))
	assert.False(t, IsErrorCode(err, ErrTransferFailed))
	assert.False(t, IsErrorCode(fmt.Errorf("plain"), ErrRemoteNotFound))
}

func TestIsErrorCodeThroughWrapping(t *testing.T) {
	inner := New(ErrRemoteNotFound, "not found")
	outer := fmt.Errorf("context: %w", inner)

	assert.True(t, IsErrorCode(outer, ErrRemoteNotFound))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrFileWrite, GetErrorCode(New(ErrFileWrite, "disk full")))
	assert.Equal(t, ErrUnknown, GetErrorCode(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrTransferFailed, "fetch failed").
		WithDetail("url", "http://example.com/mod.jar")

	details := GetErrorDetails(err)
	assert.Equal(t, "http://example.com/mod.jar", details["url"])
}

func TestErrorsIs(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), ErrBackupFailed, "backup")
	assert.True(t, errors.Is(err, New(ErrBackupFailed, "anything")))
	assert.False(t, errors.Is(err, New(ErrCopyFailed, "anything")))
}
