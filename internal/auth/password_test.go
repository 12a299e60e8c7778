package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmarathon/apiserver/internal/auth"
)

// Fixtures produced by the Werkzeug encodings stored in the users table.
const (
	legacyAdminHash = "240be518fabd2724ddb6f04eeb1da5967448d7e831c08c8fa822809f74c720a9" // admin123
	pbkdf2SHA256    = "pbkdf2:sha256:1000$NaCl4Tests0123ab$fdd8232dccdf59532909e9103094775431d060339f3a4f09993bd9d517e20aa3"
	pbkdf2SHA512    = "pbkdf2:sha512:2000$NaCl4Tests0123ab$3fd98fca12f90d68374447145d7749007b8ac23d39a004f78b4b1d29105492a1ba623f4010e1a6038a1131afa4b0e1d48e007595b540832a27bd8142df5f2311"
	scryptHash      = "scrypt:16384:8:1$NaCl4Tests0123ab$8d538fd2c0e9eb7efcd7acb8024d3e2782e4d4671d3178e4d22670929ffc028f8f92400ca3d7bc2eeb838fa8b037147a0bb1d585bbe7de4a64bf7af2c5e5451a"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   auth.Scheme
	}{
		{name: "lowercase hex", stored: legacyAdminHash, want: auth.SchemeSHA256},
		{name: "uppercase hex", stored: strings.ToUpper(legacyAdminHash), want: auth.SchemeSHA256},
		{name: "arbitrary hex of right length", stored: strings.Repeat("ab", 32), want: auth.SchemeSHA256},
		{name: "63 hex chars", stored: legacyAdminHash[:63], want: auth.SchemeUnknown},
		{name: "64 chars not hex", stored: strings.Repeat("zz", 32), want: auth.SchemeUnknown},
		{name: "scrypt prefix", stored: scryptHash, want: auth.SchemeScrypt},
		{name: "pbkdf2 prefix", stored: pbkdf2SHA256, want: auth.SchemePBKDF2},
		{name: "bcrypt", stored: "$2a$10$abcdefghijklmnopqrstuv", want: auth.SchemeUnknown},
		{name: "empty", stored: "", want: auth.SchemeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Classify(tt.stored))
		})
	}
}

func TestPasswordVerifier_VerifyStoredHashes(t *testing.T) {
	v := auth.NewPasswordVerifier()

	tests := []struct {
		name     string
		stored   string
		password string
	}{
		{name: "legacy sha256", stored: legacyAdminHash, password: "admin123"},
		{name: "legacy sha256 uppercase", stored: strings.ToUpper(legacyAdminHash), password: "admin123"},
		{name: "pbkdf2 sha256", stored: pbkdf2SHA256, password: "leader123"},
		{name: "pbkdf2 sha512", stored: pbkdf2SHA512, password: "leader123"},
		{name: "scrypt", stored: scryptHash, password: "leader123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, v.Verify(tt.password, tt.stored), "correct password must match")
			assert.False(t, v.Verify(tt.password+"x", tt.stored), "wrong password must not match")
			assert.False(t, v.Verify("", tt.stored), "empty password must not match")
		})
	}
}

func TestPasswordVerifier_MalformedHashesNeverMatch(t *testing.T) {
	v := auth.NewPasswordVerifier()

	malformed := []string{
		"",
		"plaintext-password",
		"pbkdf2:sha256:1000",
		"pbkdf2:sha256:1000$salt",
		"pbkdf2:md5:1000$salt$abcd",
		"pbkdf2:sha256:notanumber$salt$abcd",
		"pbkdf2:sha256:0$salt$abcd",
		"pbkdf2:sha256:99999999999$salt$abcd",
		"scrypt:16384:8$salt$abcd",
		"scrypt:1000:8:1$salt$abcd",
		"scrypt:4194304:8:1$salt$abcd",
		"scrypt:x:8:1$salt$abcd",
		"$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
	}

	for _, stored := range malformed {
		assert.NotPanics(t, func() {
			assert.False(t, v.Verify("password", stored), "hash %q", stored)
		})
	}
}

func TestPasswordVerifier_HashRoundTrip(t *testing.T) {
	v := auth.NewPasswordVerifier(auth.WithPBKDF2Iterations(1000))

	for _, scheme := range []auth.Scheme{auth.SchemePBKDF2, auth.SchemeScrypt, auth.SchemeSHA256} {
		t.Run(string(scheme), func(t *testing.T) {
			stored, err := v.Hash("correct horse", scheme)
			require.NoError(t, err)

			assert.Equal(t, scheme, auth.Classify(stored))
			assert.True(t, v.Verify("correct horse", stored))
			assert.False(t, v.Verify("battery staple", stored))
		})
	}
}

func TestPasswordVerifier_HashDefaultsToPBKDF2(t *testing.T) {
	v := auth.NewPasswordVerifier()

	stored, err := v.Hash("s3cure-pass", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored, "pbkdf2:sha256:600000$"))
	parts := strings.Split(stored, "$")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 16)
	assert.Len(t, parts[2], 64)
}

func TestPasswordVerifier_HashUsesFreshSalt(t *testing.T) {
	v := auth.NewPasswordVerifier(auth.WithPBKDF2Iterations(1000))

	first, err := v.Hash("same", auth.SchemePBKDF2)
	require.NoError(t, err)
	second, err := v.Hash("same", auth.SchemePBKDF2)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordVerifier_HashRejectsEmptyAndUnknown(t *testing.T) {
	v := auth.NewPasswordVerifier()

	_, err := v.Hash("", auth.SchemePBKDF2)
	assert.True(t, auth.IsCode(err, auth.CodeValidation))

	_, err = v.Hash("pw", auth.Scheme("md5"))
	assert.True(t, auth.IsCode(err, auth.CodeValidation))
}

func TestPasswordVerifier_VerifyDummy(t *testing.T) {
	v := auth.NewPasswordVerifier()
	assert.False(t, v.VerifyDummy("anything"))
}

func TestParseScheme(t *testing.T) {
	got, err := auth.ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, auth.SchemePBKDF2, got)

	got, err = auth.ParseScheme(" SCRYPT ")
	require.NoError(t, err)
	assert.Equal(t, auth.SchemeScrypt, got)

	_, err = auth.ParseScheme("bcrypt")
	assert.Error(t, err)
}
