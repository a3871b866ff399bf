package provider

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

var ErrTokenLimitExceeded = errors.New("TokenLimitExceeded")

// EstimateTokens 按约 3 个字符一个 token 粗略估算
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 2) / 3
}

// CheckTokenLimit 在发送前检查 system + user 的估算 token 数
func CheckTokenLimit(system, user string, limit int) error {
	if limit <= 0 {
		return nil
	}
	total := EstimateTokens(system) + EstimateTokens(user)
	if total > limit {
		return errors.Wrapf(ErrTokenLimitExceeded, "输入约 %d tokens，超过上限 %d", total, limit)
	}
	return nil
}
