package utils

import (
	"strings"

	"github.com/sethvargo/go-password/password"
)

// partyCodeGenerator draws from uppercase letters and digits only, so codes
// survive being read out loud or typed on a TV remote.
var partyCodeGenerator = mustGenerator(&password.GeneratorInput{
	LowerLetters: "abcdefghjkmnpqrstuvwxyz",
	UpperLetters: "ABCDEFGHJKMNPQRSTUVWXYZ", // no I, L or O, they read as 1 and 0
	Digits:       "23456789",
})

func mustGenerator(input *password.GeneratorInput) *password.Generator {
	gen, err := password.NewGenerator(input)
	if err != nil {
		panic(err)
	}
	return gen
}

// GeneratePartyCode returns a shareable uppercase alphanumeric code of the
// given length. Uniqueness against live sessions is the caller's job.
func GeneratePartyCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := length / 3
	code, err := partyCodeGenerator.Generate(length, digits, 0, false, true)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}
