package auth

import (
	"encoding/base32"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpOpts are the web player's code parameters.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateTOTP derives the one-time code for serverTime (unix seconds) from
// the highest version in set. The result depends only on its inputs.
func GenerateTOTP(serverTime int64, set SecretSet) (code string, version int, err error) {
	version, ok := set.MaxVersion()
	if !ok {
		return "", 0, ErrNoSecrets
	}

	secret := deriveSecret(set[version])

	code, err = totp.GenerateCodeCustom(secret, time.Unix(serverTime, 0).UTC(), totpOpts)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate totp for version %d: %w", version, err)
	}

	return code, version, nil
}

// deriveSecret turns cipher bytes into the base32 shared secret.
//
// Each byte is XORed with ((i mod 33) + 9) and the results are joined as
// decimal text. The ASCII bytes of that text are the HMAC key.
func deriveSecret(cipher []int) string {
	var sb strings.Builder
	for i, b := range cipher {
		sb.WriteString(strconv.Itoa(b ^ ((i % 33) + 9)))
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(sb.String()))
}
