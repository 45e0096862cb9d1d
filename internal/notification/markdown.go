package notification

import "strings"

// markdownV2Replacer escapes every character the Telegram MarkdownV2 parser
// treats as markup, the backslash included. It rewrites in a single pass, so
// the backslashes it inserts are never escaped a second time.
var markdownV2Replacer = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

func EscapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}
