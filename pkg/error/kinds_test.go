package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewf_MatchesSentinel(t *testing.T) {
	err := Newf(KindNoSuchName, "key %o", 15)
	assert.ErrorIs(t, err, ErrNoSuchName)
	assert.NotErrorIs(t, err, ErrNameExists)
	assert.Equal(t, "NO_SUCH_NAME", err.Code)
	assert.Equal(t, ErrCategoryUser, err.Category)
	assert.Contains(t, err.Error(), "[NO_SUCH_NAME] No such name: key 17")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindOverflow, KindOf(Newf(KindOverflow, "zone %d", 2)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("outer: %w", Newf(KindNoNext, ""))
	assert.Equal(t, KindNoNext, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrNoNext)
}

func TestIOError_Unwraps(t *testing.T) {
	cause := errors.New("disk gone")
	err := IOError(cause, "ReadZone", "DirStore")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "(operation: ReadZone, component: DirStore)")
}

func TestWithin_DoesNotOverwrite(t *testing.T) {
	err := Newf(KindOverflow, "")
	err.Operation = "Allocate"
	Within(err, "Put", "VM")
	assert.Equal(t, "Allocate", err.Operation)
	assert.Equal(t, "VM", err.Component)

	plain := errors.New("plain")
	assert.Same(t, plain, Within(plain, "Put", "VM"))
}

func TestKind_Code(t *testing.T) {
	assert.Equal(t, "OK", KindNone.Code())
	assert.Equal(t, "WRONG_PASSWORD", KindWrongPassword.Code())
	assert.Equal(t, "Record too long", KindRecordTooLong.String())
}

func TestFormatStack_NamesCaller(t *testing.T) {
	err := Newf(KindInternal, "boom")
	out := err.FormatStack()
	assert.Contains(t, out, "Stack trace:")
	assert.Contains(t, out, "TestFormatStack_NamesCaller")

	assert.Empty(t, (&DBError{}).FormatStack())
}
