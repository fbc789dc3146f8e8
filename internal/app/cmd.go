package app

import (
	"fmt"
	"io"
)

// Command はsixtykの起動モード。
type Command string

const (
	// CommandServe はゲームAPIを起動する。ライブセッションはこのプロセスが保持する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れログインセッションの掃除だけを行う。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// commands は表示順を保ったサブコマンド一覧。
var commands = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "ゲームAPIサーバーを起動する（既定）"},
	{CommandWorker, "期限切れログインセッションを定期削除する"},
	{CommandMigrate, "データベースマイグレーションを適用する"},
	{CommandHealthcheck, "ローカルの/healthを確認する"},
	{CommandHelp, "この一覧を表示する"},
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数なしと未知のコマンドはserveとして扱う。-h と --help はhelp。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if args[0] == "-h" || args[0] == "--help" {
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// PrintUsage はサブコマンド一覧をwに書き出す。
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: sixtyk <command>")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.summary)
	}
}
