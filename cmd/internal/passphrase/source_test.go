package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv("CLAIMCTL_TEST_PASSPHRASE", "correct horse")
	src := NewSource("CLAIMCTL_TEST_PASSPHRASE", "")
	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", value)

	t.Setenv("CLAIMCTL_TEST_PASSPHRASE", "changed")
	value, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", value, "cached after first read")
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("CLAIMCTL_TEST_PASSPHRASE", "   ")
	_, err := NewSource("CLAIMCTL_TEST_PASSPHRASE", "beneficiary").Get()
	require.ErrorContains(t, err, "set but empty")
}

func TestConfirmedSourceAcceptsEnvironment(t *testing.T) {
	t.Setenv("CLAIMCTL_TEST_PASSPHRASE", "fresh key")
	value, err := NewSource("CLAIMCTL_TEST_PASSPHRASE", "new keystore").WithConfirm().Get()
	require.NoError(t, err)
	require.Equal(t, "fresh key", value)
}
