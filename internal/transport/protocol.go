package transport

import (
	"strings"
)

const (
	NICKNAME_PROMPT = "Choose a nickname:"
	NICKNAME_RETRY  = "This nickname already exists, please try a new one:"

	// 首次提示之后最多再重试的次数
	MAX_NICKNAME_RETRIES = 5

	SERVER_ABORTED = "The server is aborted."
)

// 昵称中不允许出现的字符，它们在线上协议中有特殊含义
const nicknameReserved = "|*#:;~\r\n"

func ValidNickname(name string) bool {
	if name == "" || strings.EqualFold(name, "server") {
		return false
	}

	return !strings.ContainsAny(name, nicknameReserved)
}

// IsStateMsg 判断是否为 "#: " 开头的原始状态广播
func IsStateMsg(msg string) bool {
	return strings.HasPrefix(msg, "#: ")
}

// IsTaggedCmd 判断是否为 "#cmd#: " 开头的带标签命令
func IsTaggedCmd(msg, cmd string) bool {
	return strings.HasPrefix(msg, "#"+cmd+"#: ")
}

// TrimLabel 去掉 "label: " 前缀，没有前缀时原样返回
func TrimLabel(msg string) string {
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// ParseTagged 解析 "#cmd#payload" 或 "#cmd#: payload"，缺少第二个 # 时 ok 为 false
func ParseTagged(msg string) (cmd, payload string, ok bool) {
	if !strings.HasPrefix(msg, "#") {
		return "", "", false
	}

	end := strings.IndexByte(msg[1:], '#')
	if end < 0 {
		return "", "", false
	}

	cmd = msg[1 : 1+end]
	payload = strings.TrimPrefix(msg[2+end:], ": ")

	return cmd, payload, true
}

func SystemLine(text string) string {
	return "*** Server: " + text + " ***"
}
