package game

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Normalize 去首尾空白并转大写，暗号与猜测都按此比较
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Matches 猜测与目标词大小写无关、首尾空白无关地相等
func Matches(guess, target string) bool {
	return Normalize(guess) == Normalize(target)
}

// ValidateKey 校验暗号提案，返回规范化后的文本
func (r Rules) ValidateKey(text string) (string, error) {
	return validateText(text, r.MaxKeyLength, "key")
}

// ValidateGuess 校验猜测，返回规范化后的文本
func (r Rules) ValidateGuess(text string) (string, error) {
	return validateText(text, r.MaxGuessLength, "guess")
}

func validateText(text string, max int, what string) (string, error) {
	n := Normalize(text)
	if n == "" {
		return "", Invalid("%s must not be empty", what)
	}
	if utf8.RuneCountInString(n) > max {
		return "", Invalid("%s must be at most %d characters", what, max)
	}
	return n, nil
}

// ValidateID 校验 UUID 形式的对局、提案 ID
func ValidateID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return Invalid("invalid %s", what)
	}
	return nil
}
