package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyFingerprint(t *testing.T) {
	h := IdempotencyFingerprint("alice", "bob", "30", "ref-1")

	// 十六进制 SHA-256 摘要
	require.Len(t, h, 64)
	require.Regexp(t, "^[0-9a-f]+$", h)

	// 相同输入稳定
	require.Equal(t, h, IdempotencyFingerprint("alice", "bob", "30", "ref-1"))

	// 任一分量变化都改变指纹
	require.NotEqual(t, h, IdempotencyFingerprint("alice", "bob", "31", "ref-1"))
	require.NotEqual(t, h, IdempotencyFingerprint("bob", "alice", "30", "ref-1"))
	require.NotEqual(t, h, IdempotencyFingerprint("alice", "bob", "30", "ref-2"))

	// 分量顺序参与指纹
	require.NotEqual(t,
		IdempotencyFingerprint("a", "b"),
		IdempotencyFingerprint("b", "a"))

	// 分隔符防止分量拼接歧义
	require.NotEqual(t,
		IdempotencyFingerprint("ab", "c"),
		IdempotencyFingerprint("a", "bc"))
}
