package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// IdempotencyFingerprint 对操作入参计算幂等指纹
// 各操作按各自固定的字段顺序传入，金额使用精确十进制字符串，
// 以 "|" 拼接后取 SHA-256，输出 64 位十六进制
func IdempotencyFingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
